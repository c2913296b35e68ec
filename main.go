package main

import (
	"context"
	"os"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	appConfig "albumrank/config"
	"albumrank/pipeline"
	"albumrank/sentry"
	"albumrank/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		TimestampFormat: "15:04:05",
	})
	if level, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	}

	sentry.Init()
	appConfig.NewConfig()

	if err := appConfig.Config.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()
	if err := pipeline.Run(ctx, appConfig.Config); err != nil {
		sentry.ReportError(err)
		log.Fatalf("Pipeline failed: %v", err)
	}

	if appConfig.Config.Options.ServeResults {
		log.Fatal(server.Serve(appConfig.Config.Options.OutputDir, appConfig.Config.Options.Port))
	}
}
