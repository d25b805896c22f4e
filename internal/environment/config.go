package environment

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type EnvConfig struct {
	Workers      int
	QueueDepth   int
	PerUserLimit int

	WorkDir    string
	ResultDir  string
	FileDir    string
	TmpDir     string
	Toolchains string

	SubmSqsURL string
	RespSqsURL string

	NatsURL     string
	NatsSubject string
}

// ReadEnvConfig loads .env when present and falls back to defaults for
// everything unset. Missing queue endpoints simply leave that transport off.
func ReadEnvConfig() *EnvConfig {
	_ = godotenv.Load()

	return &EnvConfig{
		Workers:      envInt("ARBITER_WORKERS", 2),
		QueueDepth:   envInt("ARBITER_QUEUE_DEPTH", 128),
		PerUserLimit: envInt("ARBITER_PER_USER_LIMIT", 4),

		WorkDir:    envStr("ARBITER_WORK_DIR", "/tmp/arbiter/work"),
		ResultDir:  envStr("ARBITER_RESULT_DIR", "/tmp/arbiter/results"),
		FileDir:    envStr("ARBITER_FILE_DIR", "/tmp/arbiter/files"),
		TmpDir:     envStr("ARBITER_TMP_DIR", "/tmp/arbiter/tmp"),
		Toolchains: os.Getenv("ARBITER_TOOLCHAINS"),

		SubmSqsURL: os.Getenv("ARBITER_SUBM_SQS_URL"),
		RespSqsURL: os.Getenv("ARBITER_RESP_SQS_URL"),

		NatsURL:     os.Getenv("ARBITER_NATS_URL"),
		NatsSubject: envStr("ARBITER_NATS_SUBJECT", "arbiter.results"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
