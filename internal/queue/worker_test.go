package queue

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestRetryCountFrom(t *testing.T) {
	tests := []struct {
		name    string
		headers amqp.Table
		want    int
	}{
		{"nil headers", nil, 0},
		{"missing key", amqp.Table{}, 0},
		{"int32", amqp.Table{"x-retry-count": int32(2)}, 2},
		{"int64", amqp.Table{"x-retry-count": int64(3)}, 3},
		{"int", amqp.Table{"x-retry-count": 4}, 4},
		{"wrong type", amqp.Table{"x-retry-count": "5"}, 0},
	}
	for _, tt := range tests {
		if got := retryCountFrom(tt.headers); got != tt.want {
			t.Errorf("%s: retryCountFrom = %d, want %d", tt.name, got, tt.want)
		}
	}
}
