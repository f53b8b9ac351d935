// Command seedreports publishes synthetic flood incident reports to the
// ingest topic so the heatmap can be exercised without a real report
// collector. Reports are scattered around a center point with randomized
// water levels spanning all three severity grades.
//
// Usage:
//
//	go run ./cmd/seedreports \
//	  -brokers localhost:9092 \
//	  -topic flood-incident-reports \
//	  -lat 23.0 -lng 120.2 -count 20
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/floodwatch/flood-search-service/internal/domain"
)

var reportSources = []string{"line-bot", "web-form", "phone-hotline"}

var descriptions = []string{
	"路面積水約腳踝高,機車仍可通行",
	"積水約半個輪胎高,小型車請改道",
	"騎樓淹水,店家正在堆沙包",
	"地下道積水封閉,請改走替代道路",
	"水淹至膝蓋,請勿強行通過",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	brokers := flag.String("brokers", "localhost:9092", "comma-separated Kafka brokers")
	topic := flag.String("topic", "flood-incident-reports", "report topic")
	lat := flag.Float64("lat", 23.0, "center latitude")
	lng := flag.Float64("lng", 120.2, "center longitude")
	spread := flag.Float64("spread", 2000, "max distance from center in meters")
	count := flag.Int("count", 20, "number of reports to publish")
	seed := flag.Int64("seed", 0, "random seed (0 uses the current time)")
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	w := &kafkago.Writer{
		Addr:         kafkago.TCP(splitList(*brokers)...),
		Topic:        *topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	defer w.Close()

	msgs := make([]kafkago.Message, 0, *count)
	for i := 0; i < *count; i++ {
		msg, err := buildReport(rng, *lat, *lng, *spread)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish reports: %w", err)
	}

	log.Printf("published %d reports to %s (seed %d)", *count, *topic, *seed)
	return nil
}

// buildReport generates one randomized report near the center. Water levels
// are drawn so minor, moderate, and severe grades all appear.
func buildReport(rng *rand.Rand, lat, lng, spreadM float64) (kafkago.Message, error) {
	pLat, pLng := domain.Offset(lat, lng, rng.Float64()*spreadM, rng.Float64()*360)

	payload := map[string]any{
		"source":         reportSources[rng.Intn(len(reportSources))],
		"description":    descriptions[rng.Intn(len(descriptions))],
		"lat":            pLat,
		"lng":            pLng,
		"water_level_cm": 10 + rng.Float64()*290,
		"reported_at":    time.Now().Add(-time.Duration(rng.Intn(120)) * time.Minute).Format(time.RFC3339),
	}

	value, err := json.Marshal(payload)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("marshal report: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(fmt.Sprintf("%.5f,%.5f", pLat, pLng)),
		Value: value,
	}, nil
}

func splitList(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
