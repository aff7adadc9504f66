package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"btpad"
)

const (
	profileSamples  = 10
	profileInterval = time.Second
)

// runProfile measures how many raw events the controller delivers per
// second. Ten one-second samples are taken while the user wiggles both
// sticks; the score reported is the max and the average of the best five,
// so slow warm-up samples don't drag the result down.
func runProfile(ctx context.Context, ctrl *btpad.Controller, logger *slog.Logger) {
	fmt.Println("Measuring events per second. Move both joysticks around as fast as")
	fmt.Printf("you can. You'll see %d one-second samples, then a score for the\n", profileSamples)
	fmt.Println("controller.")
	fmt.Println()

	ticker := time.NewTicker(profileInterval)
	defer ticker.Stop()

	var samples []float64
	for len(samples) < profileSamples {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, running := ctrl.Poll(); !running {
				logger.Warn("controller stopped during profiling")
				return
			}
			rate := ctrl.Rate()
			samples = append(samples, rate)
			fmt.Printf("events per second: %.1f\n", rate)
		}
	}

	sort.Float64s(samples)
	best := samples[len(samples)/2:]

	max := best[len(best)-1]
	sum := 0.0
	for _, r := range best {
		sum += r
	}
	avg := sum / float64(len(best))

	fmt.Println()
	fmt.Println("RESULTS:")
	fmt.Printf("Events per second. MAX: %.1f, AVERAGE (best %d): %.1f\n", max, len(best), avg)
}
