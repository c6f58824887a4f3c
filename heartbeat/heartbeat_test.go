package heartbeat

import (
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"
)

func TestTimePeriod(t *testing.T) {
	if Daily.Days() != 1 {
		t.Errorf("Days() = %d, want 1", Daily.Days())
	}
	if Daily.Duration() != 24*time.Hour {
		t.Errorf("Duration() = %v, want 24h", Daily.Duration())
	}
	if Daily.String() != "daily" {
		t.Errorf("String() = %q, want daily", Daily.String())
	}
	if got := TimePeriod(99).String(); got != "TimePeriod(99)" {
		t.Errorf("unknown String() = %q", got)
	}

	periods := AllTimePeriods()
	if len(periods) != 1 || periods[0] != Daily {
		t.Errorf("AllTimePeriods() = %v", periods)
	}
}

func TestTimePeriod_Text(t *testing.T) {
	data, err := json.Marshal([]TimePeriod{Daily})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `["daily"]` {
		t.Errorf("got %s", data)
	}

	var back []TimePeriod
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(back) != 1 || back[0] != Daily {
		t.Errorf("got %v", back)
	}

	if _, err := json.Marshal(TimePeriod(7)); err == nil {
		t.Error("expected error marshaling unknown period")
	}
	var p TimePeriod
	if err := json.Unmarshal([]byte(`"weekly"`), &p); err == nil {
		t.Error("expected error unmarshaling unknown period")
	}
}

func TestNormalizeDate(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "late evening in New York is the next UTC day",
			in:   time.Date(2021, 11, 1, 23, 0, 0, 0, newYork),
			want: time.Date(2021, 11, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "morning in Tokyo is the previous UTC day",
			in:   time.Date(2021, 11, 2, 8, 0, 0, 0, tokyo),
			want: time.Date(2021, 11, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "UTC midnight is unchanged",
			in:   time.Date(2021, 11, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2021, 11, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "last nanosecond of the day",
			in:   time.Date(2021, 11, 1, 23, 59, 59, 999999999, time.UTC),
			want: time.Date(2021, 11, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDate(tt.in)
			if !got.Equal(tt.want) || got.Location() != time.UTC {
				t.Errorf("NormalizeDate(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
