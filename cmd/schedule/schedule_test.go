package schedule

import (
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
)

func TestCronSpec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		frequency string
		want      string
	}{
		{"hourly", "@hourly"},
		{"daily", "@daily"},
		{"weekly", "@weekly"},
		{"monthly", "@monthly"},
		{"*/15 * * * *", "*/15 * * * *"},
		{"@every 6h", "@every 6h"},
	}

	for _, tt := range tests {
		t.Run(tt.frequency, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, cronSpec(tt.frequency))
		})
	}
}

func TestCronSpecParsable(t *testing.T) {
	t.Parallel()

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for _, frequency := range []string{"hourly", "daily", "weekly", "monthly"} {
		_, err := parser.Parse(cronSpec(frequency))
		require.NoError(t, err, "frequency %q must map onto a valid cron spec", frequency)
	}
}
