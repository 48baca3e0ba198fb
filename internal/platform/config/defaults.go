package config

import "time"

// Default constructs the built-in configuration. Values under wake are the
// tuned production constants; overriding them in YAML is supported but rarely
// needed outside tests.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			IP:          "0.0.0.0",
			Port:        8030,
			CORSOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "logs",
			File:  "cipher-server.log",
		},
		Storage: StorageConfig{
			DataDir: "./data",
		},
		Wake: WakeConfig{
			WakePhrases: []string{
				"hey cipher",
				"okay cipher",
				"cipher",
			},
			PhoneticVariants: []string{
				"hey sifer",
				"hey cypher",
				"hey sypher",
				"hey syfer",
				"hey cyfer",
				"a cipher",
				"hey psyfer",
				"hay cipher",
			},
			EndPhrases: []string{
				"that's all",
				"that is all",
				"thats all",
				"we're done",
				"were done",
				"goodbye cipher",
				"stop listening",
				"end conversation",
			},
			PausePhrases: []string{
				"pause cipher",
				"hold that thought",
				"give me a moment",
				"pause for now",
				"one moment",
			},
			ActivationResponses: []string{
				"Yes?",
				"I'm listening.",
				"Go ahead.",
				"How can I help?",
			},
			EndResponses: []string{
				"Goodbye.",
				"Talk to you later.",
				"Signing off.",
			},
			PauseResponses: []string{
				"Pausing for now.",
				"I'll be here when you need me.",
				"Okay, take your time.",
			},
			ContinuationResponses: []string{
				"Anything else?",
				"What else can I do for you?",
				"I'm still here.",
			},
			DebounceInterval:     Duration(2 * time.Second),
			MaxConsecutiveErrors: 8,
			BaseBackoffDelay:     Duration(150 * time.Millisecond),
			BackoffCap:           Duration(500 * time.Millisecond),
			CooldownDuration:     Duration(3 * time.Second),
			InactivityTimeout:    Duration(30 * time.Second),
			ResumeDelay:          Duration(500 * time.Millisecond),
			RestartDelay:         Duration(100 * time.Millisecond),
		},
		Recognizer: RecognizerConfig{
			GatewayURL:  "ws://127.0.0.1:8070/v1/stream",
			DialTimeout: Duration(5 * time.Second),
		},
		Session: SessionConfig{
			TokenTTL:        Duration(time.Hour),
			CleanupInterval: Duration(10 * time.Minute),
			Store: SessionStoreConfig{
				Driver: "memory",
				TTL:    Duration(24 * time.Hour),
			},
		},
		Analysis: AnalysisConfig{
			Model:       "gpt-4o-mini",
			MaxTokens:   2048,
			Temperature: 0.2,
			Timeout:     Duration(30 * time.Second),
		},
	}
}
