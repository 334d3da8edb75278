package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	verbose bool
}

// logger: production a livello debug con --verbose, altrimenti nessun log.
func (o *rootOptions) logger() *zap.Logger {
	if !o.verbose {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// NewRootCmd costruisce l'albero dei comandi.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "agriassist",
		Short: "Crop and fertilizer recommendations from soil and weather data",
		Long: `AgriAssist suggests the crops best suited to your field and the fertilizers
for the crop you pick.

Quick Start:
  agriassist guide                       How to read your soil and weather data
  agriassist recommend --ph 6.8          Recommend from manually entered values
  agriassist recommend --token <TOKEN>   Pre-fill weather values from a Blynk device`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			// .env opzionale: BLYNK_TOKEN, RECOMMENDER_URL
			_ = godotenv.Load()
		},
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging on stderr")

	root.AddCommand(newGuideCmd(), newRecommendCmd(opts))
	return root
}

// Execute esegue la root con gestione dei segnali.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
