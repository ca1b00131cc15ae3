// Package events publishes partition-materialized notifications to Kafka so
// reporting consumers can refresh without polling the derived store.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"hmdamart/internal/incremental/ports"
	"hmdamart/pkg/platform/sentinel"
)

// EventType is set as the event_type header on every record.
const EventType = "partition_materialized"

// PartitionMessage is the JSON value of a partition event.
type PartitionMessage struct {
	EventType   string         `json:"event_type"`
	RunID       string         `json:"run_id"`
	Year        int            `json:"year"`
	Mode        string         `json:"mode"`
	Records     int            `json:"records"`
	Groups      map[string]int `json:"groups"`
	LMIBorrower int            `json:"lmi_borrowers"`
	LMITract    int            `json:"lmi_tracts"`
	MMCT        int            `json:"majority_minority_tracts"`
	CompletedAt time.Time      `json:"completed_at"`
}

// NewPartitionMessage converts a controller event into its wire form.
func NewPartitionMessage(e ports.PartitionEvent) PartitionMessage {
	return PartitionMessage{
		EventType:   EventType,
		RunID:       e.RunID.String(),
		Year:        e.Year,
		Mode:        e.Mode.String(),
		Records:     e.Records,
		Groups:      e.Summary.Groups(),
		LMIBorrower: e.Summary.LMIBorrowers,
		LMITract:    e.Summary.LMITracts,
		MMCT:        e.Summary.MajorityMinority,
		CompletedAt: e.CompletedAt.UTC(),
	}
}

// Record builds the Kafka record for an event, keyed by year so all events
// for one year land on the same partition in order.
func Record(topic string, e ports.PartitionEvent) (*kgo.Record, error) {
	value, err := json.Marshal(NewPartitionMessage(e))
	if err != nil {
		return nil, fmt.Errorf("encode partition event: %w", err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(strconv.Itoa(e.Year)),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(EventType)},
			{Key: "run_id", Value: []byte(e.RunID.String())},
		},
	}, nil
}

// KafkaPublisher produces partition events synchronously.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

func NewKafkaPublisher(client *kgo.Client, topic string) *KafkaPublisher {
	return &KafkaPublisher{client: client, topic: topic}
}

func (p *KafkaPublisher) PublishPartition(ctx context.Context, event ports.PartitionEvent) error {
	rec, err := Record(p.topic, event)
	if err != nil {
		return err
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("produce partition event: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}

// EnsureTopic creates topic if it does not exist yet.
func EnsureTopic(ctx context.Context, admin *kadm.Client, topic string, partitions int32, replication int16) error {
	resp, err := admin.CreateTopic(ctx, partitions, replication, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, errors.Join(sentinel.ErrUnavailable, err))
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}
