package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	deepgramtts "github.com/koscakluka/ema-interrogation/core/texttospeech/deepgram"
)

func newVoicesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:          "voices",
		Short:        "List the voices available for agent playback",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if cfg.Deepgram.APIKey == "" {
				return errors.New("no Deepgram API key configured")
			}

			var opts []deepgramtts.ClientOption
			if cfg.Deepgram.APIURL != "" {
				opts = append(opts, deepgramtts.WithAPIURL(cfg.Deepgram.APIURL))
			}
			client, err := deepgramtts.NewTextToSpeechClient(cfg.Deepgram.APIKey, opts...)
			if err != nil {
				return err
			}

			voices, err := client.ListVoices(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing voices: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tLANGUAGE")
			for _, voice := range voices {
				fmt.Fprintf(w, "%s\t%s\t%s\n", voice.ID, voice.Name, voice.Language)
			}
			return w.Flush()
		},
	}
}
