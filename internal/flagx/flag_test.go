package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	clientFlags := []string{"-a", "-dsn", "-q", "-status"}

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"separate values", []string{"-a", "sync:50051", "-x", "1", "-q", "70"}, []string{"-a", "sync:50051", "-q", "70"}},
		{"equals form", []string{"-dsn=local.db", "-c=client.json"}, []string{"-dsn=local.db"}},
		{"equals value may start with dash", []string{"-status=-"}, []string{"-status=-"}},
		{"trailing flag without value", []string{"-q"}, []string{"-q"}},
		{"next flag is not a value", []string{"-a", "-q", "40"}, []string{"-a", "-q", "40"}},
		{"unknown only", []string{"-issue-token", "dev-1", "positional"}, []string{}},
		{"repeats kept in order", []string{"-a", "one", "-a", "two"}, []string{"-a", "one", "-a", "two"}},
		{"empty", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, clientFlags))
		})
	}
}

func TestFilterArgs_StopsAtTerminator(t *testing.T) {
	got := FilterArgs([]string{"-a", "x", "--", "-q", "10"}, []string{"-a", "-q"})
	assert.Equal(t, []string{"-a", "x"}, got)
}

func TestConfigPath(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"short", []string{"-c", "/etc/gutscan/client.json"}, "/etc/gutscan/client.json"},
		{"long", []string{"-config", "server.json", "-a", ":50051"}, "server.json"},
		{"equals", []string{"--config=/tmp/eq.json"}, "/tmp/eq.json"},
		{"absent", []string{"-a", ":50051", "-q", "2"}, ""},
		{"last wins", []string{"-c", "1.json", "-config", "2.json"}, "2.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConfigPath(tt.args))
		})
	}
}
