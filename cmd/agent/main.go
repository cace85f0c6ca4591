package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/joho/godotenv"

	"github.com/lokutor-ai/vtuber-orchestrator/pkg/logging"
	"github.com/lokutor-ai/vtuber-orchestrator/pkg/memory"
	"github.com/lokutor-ai/vtuber-orchestrator/pkg/orchestrator"
	avatarProvider "github.com/lokutor-ai/vtuber-orchestrator/pkg/providers/avatar"
	chatProvider "github.com/lokutor-ai/vtuber-orchestrator/pkg/providers/chat"
	llmProvider "github.com/lokutor-ai/vtuber-orchestrator/pkg/providers/llm"
	sinkProvider "github.com/lokutor-ai/vtuber-orchestrator/pkg/providers/sink"
	"github.com/lokutor-ai/vtuber-orchestrator/pkg/providers/stt"
	"github.com/lokutor-ai/vtuber-orchestrator/pkg/providers/stt/local"
	ttsProvider "github.com/lokutor-ai/vtuber-orchestrator/pkg/providers/tts"
)

const sampleRate = 44100

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, using system environment variables")
	}

	logger := logging.New(nil)

	cfgPath := os.Getenv("AGENT_CONFIG")
	cfg, err := orchestrator.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if dump, err := cfg.Dump(); err == nil {
		logger.Debug("effective config", "yaml", dump)
	}

	groqKey := os.Getenv("GROQ_API_KEY")
	openaiKey := os.Getenv("OPENAI_API_KEY")
	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")
	googleKey := os.Getenv("GOOGLE_API_KEY")
	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	assemblyKey := os.Getenv("ASSEMBLYAI_API_KEY")
	lokutorKey := os.Getenv("LOKUTOR_API_KEY")
	discordToken := os.Getenv("DISCORD_BOT_TOKEN")
	discordChannel := os.Getenv("DISCORD_CHANNEL_ID")
	avatarURL := os.Getenv("AVATAR_WS_URL")

	sttProviderName := envOr("STT_PROVIDER", "groq")
	llmProviderName := envOr("LLM_PROVIDER", "groq")
	lang := envOr("AGENT_LANGUAGE", "en")
	voice := envOr("AGENT_VOICE", "F1")

	if lokutorKey == "" {
		log.Fatal("Error: LOKUTOR_API_KEY must be set.")
	}

	batchTranscriber, sttName := buildSTT(sttProviderName, groqKey, openaiKey, deepgramKey, assemblyKey)
	llm := buildLLM(llmProviderName, groqKey, openaiKey, anthropicKey, googleKey)

	tts := ttsProvider.NewLokutorTTS(lokutorKey, voice, lang)

	sink, err := sinkProvider.New()
	if err != nil {
		log.Fatalf("init audio sink: %v", err)
	}
	defer sink.Close()

	recognizer := local.NewRecognizer(batchTranscriber, lang)
	sink.OnPlaybackAudio(recognizer.NotifyPlayback)

	var avatar orchestrator.AvatarController
	if avatarURL != "" {
		avatar = avatarProvider.New(avatarURL)
	}

	var chatSource orchestrator.ChatSource
	if cfg.ChatEnabled && discordToken != "" && discordChannel != "" {
		dc, err := chatProvider.NewDiscordChat(discordToken, discordChannel)
		if err != nil {
			log.Fatalf("init discord chat: %v", err)
		}
		chatSource = dc
	} else {
		cfg.ChatEnabled = false
	}

	var longTerm orchestrator.LongTermMemoryStore
	if cfg.LLMMemoryPath != "" {
		lt, err := memory.NewLongTerm(cfg.LLMMemoryPath, 200)
		if err != nil {
			log.Fatalf("init long-term memory: %v", err)
		}
		longTerm = lt
	}

	var coreMemory orchestrator.CoreMemoryStore
	if cfg.LLMCoreMemoryPath != "" {
		cm, err := memory.NewCoreMemory(cfg.LLMCoreMemoryPath)
		if err != nil {
			log.Fatalf("init core memory: %v", err)
		}
		coreMemory = cm
	}

	orch, err := orchestrator.New(cfg, logger, recognizer, chatSource, llm, tts, sink, avatar, longTerm, coreMemory)
	if err != nil {
		log.Fatalf("construct orchestrator: %v", err)
	}

	fmt.Printf("Configured: STT=%s | LLM=%s | TTS=Lokutor | Chat enabled=%v\n", sttName, llmProviderName, cfg.ChatEnabled)
	fmt.Printf("Sample rate: %dHz | Language: %s | Voice: %s\n", sampleRate, lang, voice)
	fmt.Println("Virtual streamer engine started. Press Ctrl+C to exit.")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orch.Start(ctx)
	defer orch.Stop()

	stopMicCapture := startMicCapture(recognizer)
	defer stopMicCapture()

	go printSnapshots(ctx, orch)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Println("\nShutting down...")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func buildSTT(name, groqKey, openaiKey, deepgramKey, assemblyKey string) (stt.BatchTranscriber, string) {
	switch name {
	case "openai":
		if openaiKey == "" {
			log.Fatal("Error: OPENAI_API_KEY must be set for openai STT")
		}
		return stt.NewOpenAISTT(openaiKey, "whisper-1"), "openai"
	case "deepgram":
		if deepgramKey == "" {
			log.Fatal("Error: DEEPGRAM_API_KEY must be set for deepgram STT")
		}
		return stt.NewDeepgramSTT(deepgramKey), "deepgram"
	case "assemblyai":
		if assemblyKey == "" {
			log.Fatal("Error: ASSEMBLYAI_API_KEY must be set for assemblyai STT")
		}
		return stt.NewAssemblyAISTT(assemblyKey), "assemblyai"
	case "groq":
		fallthrough
	default:
		if groqKey == "" {
			log.Fatal("Error: GROQ_API_KEY must be set for groq STT")
		}
		groqModel := envOr("GROQ_STT_MODEL", "whisper-large-v3-turbo")
		groqSTT := stt.NewGroqSTT(groqKey, groqModel)
		groqSTT.SetSampleRate(sampleRate)
		return groqSTT, "groq"
	}
}

func buildLLM(name, groqKey, openaiKey, anthropicKey, googleKey string) orchestrator.LLMProvider {
	switch name {
	case "openai":
		if openaiKey == "" {
			log.Fatal("Error: OPENAI_API_KEY must be set for openai LLM")
		}
		return llmProvider.NewOpenAILLM(openaiKey, "gpt-4o")
	case "anthropic":
		if anthropicKey == "" {
			log.Fatal("Error: ANTHROPIC_API_KEY must be set for anthropic LLM")
		}
		return llmProvider.NewAnthropicLLM(anthropicKey, "claude-3-5-sonnet-20241022")
	case "google":
		if googleKey == "" {
			log.Fatal("Error: GOOGLE_API_KEY must be set for google LLM")
		}
		g, err := llmProvider.NewGoogleLLM(context.Background(), googleKey, "gemini-1.5-flash")
		if err != nil {
			log.Fatalf("init google LLM: %v", err)
		}
		return g
	case "groq":
		fallthrough
	default:
		if groqKey == "" {
			log.Fatal("Error: GROQ_API_KEY must be set for groq LLM")
		}
		return llmProvider.NewGroqLLM(groqKey, "llama-3.3-70b-versatile")
	}
}

// startMicCapture opens a capture-only malgo device and feeds every frame to
// recognizer.Write, exactly as the teacher's onSamples fed ManagedStream.Write.
// The returned func releases the device and its malgo context.
func startMicCapture(recognizer *local.Recognizer) func() {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Fatalf("init malgo context: %v", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = sampleRate
	deviceConfig.Alsa.NoMMap = 1

	onSamples := func(pOutput, pInput []byte, frameCount uint32) {
		if pInput != nil {
			_ = recognizer.Write(pInput)
		}
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		log.Fatalf("init capture device: %v", err)
	}
	if err := device.Start(); err != nil {
		log.Fatalf("start capture device: %v", err)
	}

	return func() {
		device.Uninit()
		mctx.Uninit()
	}
}

// printSnapshots polls the orchestrator's dashboard view and prints a single
// status line, the way a real dashboard would render Snapshot() continuously.
func printSnapshots(ctx context.Context, orch *orchestrator.Orchestrator) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := orch.Snapshot()
			fmt.Printf("\r\033[K[state=%s idle_for=%s chat_window=%d long_term=%d core_memory=%d]",
				snap.SpeakingState, snap.IdleFor.Round(time.Second), len(snap.ChatWindow), len(snap.LongTermMemory), snap.CoreMemoryCount)
		}
	}
}
