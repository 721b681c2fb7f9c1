package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host     string `env:"HOST,default=localhost"`
	Port     int    `env:"PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	JWTIssuer         string        `env:"JWT_ISSUER,default=chat-relay"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	// BufferSize bounds the broker publish channel; ConnectionBufferSize
	// bounds each subscriber's delivery channel.
	BufferSize           int           `env:"BUFFER_SIZE,default=256"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=1s"`

	MaxContentLength int    `env:"MAX_CONTENT_LENGTH,default=2000"`
	CharReplacement  string `env:"CHARACTER_REPLACEMENT,default=*"`

	PingInterval   time.Duration `env:"PING_INTERVAL,default=30s"`
	PongWait       time.Duration `env:"PONG_WAIT,default=60s"`
	WriteWait      time.Duration `env:"WRITE_WAIT,default=10s"`
	MaxMessageSize int64         `env:"MAX_MESSAGE_SIZE,default=4096"`

	MetricInterval time.Duration `env:"METRIC_INTERVAL,default=30s"`
}

// CharacterRune enforces that the masking replacement is a single character.
func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
