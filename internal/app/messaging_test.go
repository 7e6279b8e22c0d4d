package app

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodtrack/internal/lock"
	"github.com/vladislavdragonenkov/foodtrack/internal/tracking"
)

func TestSplitList(t *testing.T) {
	t.Parallel()

	got := splitList(" kafka-1:9092, ,kafka-2:9092,")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("splitList = %v", got)
	}
	if got := splitList(""); len(got) != 0 {
		t.Fatalf("splitList(\"\") = %v, want empty", got)
	}
}

func TestInitEventBroker_DisabledModes(t *testing.T) {
	t.Parallel()

	cases := map[string]Config{
		"none":             {EventBroker: EventBrokerNone},
		"empty":            {},
		"unknown":          {EventBroker: "nats"},
		"kafka no brokers": {EventBroker: EventBrokerKafka},
	}
	for name, cfg := range cases {
		cfg := cfg
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			broker := initEventBroker(cfg, tracking.NewHub(), log.WithField("test", name))
			if broker.enabled() {
				t.Fatal("broker must be disabled")
			}
			if broker.consumer != nil || broker.checker != nil {
				t.Fatal("disabled broker must not have consumer or checker")
			}
			if err := broker.closeFn(); err != nil {
				t.Fatalf("closeFn: %v", err)
			}
		})
	}
}

func TestInitLocker_WithoutRedisUsesKeyed(t *testing.T) {
	t.Parallel()

	locker, checker, closeFn := initLocker(context.Background(), Config{}, log.WithField("test", "locker"))
	if _, ok := locker.(*lock.Keyed); !ok {
		t.Fatalf("locker = %T, want *lock.Keyed", locker)
	}
	if checker != nil {
		t.Fatal("checker must be nil without redis")
	}
	if err := closeFn(); err != nil {
		t.Fatalf("closeFn: %v", err)
	}
}
