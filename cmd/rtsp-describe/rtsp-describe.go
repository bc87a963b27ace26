// rtsp-describe fetches an SDP document from an RTSP describe-server via
// a single DESCRIBE request and prints it to stdout.
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/tschiemer/aes67-core/rtsp"
)

func main() {
	addr := pflag.String("addr", "", "host:port of the RTSP server (required)")
	url := pflag.String("url", "", "request target, e.g. rtsp://host/session.sdp (required)")
	timeout := pflag.Duration("timeout", 5*time.Second, "overall request timeout")
	pflag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *addr == "" || *url == "" {
		log.Fatal().Msg("-addr and -url are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := rtsp.NewClient()
	if err := c.Start(ctx, *addr, *url); err != nil {
		log.Fatal().Err(err).Msg("could not start DESCRIBE request")
	}
	defer c.Stop()

	deadline, _ := ctx.Deadline()
	for {
		done, err := c.Process(deadline)
		if err != nil {
			log.Fatal().Err(err).Msg("DESCRIBE request failed")
		}
		if done {
			break
		}
		if time.Now().After(deadline) {
			log.Fatal().Msg("DESCRIBE request timed out")
		}
	}

	if c.StatusCode != 200 || len(c.Content) == 0 {
		log.Fatal().Int("status", c.StatusCode).Msg("server did not return an SDP document")
	}

	os.Stdout.Write(c.Content)
}
