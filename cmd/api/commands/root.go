package commands

import (
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "api",
	Short:        "Condo unit matching service",
	Long:         `Scores and ranks condominium units against CRM lead preferences.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(rankCmd)
}

// configureLogging applies LOG_LEVEL and LOG_FORMAT as loaded by config.Load.
func configureLogging(level, format string) {
	if level != "" {
		lvl, err := log.ParseLevel(level)
		if err != nil {
			log.WithField("level", level).Warn("unknown LOG_LEVEL, keeping current level")
		} else {
			log.SetLevel(lvl)
		}
	}
	if strings.EqualFold(format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	}
}
