// Command murmur runs a real-time voice conversation from the terminal.
//
// Usage:
//
//	murmur [-config murmur.yaml]
//
// Environment variables:
//
//	GEMINI_API_KEY   - Required for the live voice model
//	DEEPGRAM_API_KEY - Optional; enables hands-free wake listening
//
// Controls:
//
//	/start      Start a voice session
//	/stop       End the current session
//	/handsfree  Toggle wake-word listening
//	/history    Print the transcript history
//	/quit       Exit
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/murmurkit/murmur/pkg/audio"
	"github.com/murmurkit/murmur/pkg/config"
	"github.com/murmurkit/murmur/pkg/core/live"
	"github.com/murmurkit/murmur/pkg/providers/deepgram"
	"github.com/murmurkit/murmur/pkg/providers/gemini"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("murmur exited", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Unset fields fall back to the core defaults inside the manager;
	// the audio devices need the resolved values up front.
	sessionCfg := cfg.Live().WithDefaults()

	dialer, err := gemini.NewDialer(ctx, gemini.Config{
		APIKey: cfg.Gemini.APIKey,
		Model:  cfg.Gemini.Model,
	}, log)
	if err != nil {
		return err
	}

	devices, err := audio.NewDevices(log)
	if err != nil {
		return err
	}
	defer devices.Close()

	mic := devices.NewMicrophone(sessionCfg.InputSampleRate, sessionCfg.FrameSize)
	speaker, err := devices.NewSpeaker(sessionCfg.OutputSampleRate)
	if err != nil {
		return err
	}
	defer speaker.Close()

	// The recognizer shares the session microphone; the manager
	// guarantees only one of them holds it at a time.
	var recognizer live.Recognizer
	if cfg.Deepgram.APIKey != "" {
		recognizer = deepgram.NewRecognizer(deepgram.Config{
			APIKey:       cfg.Deepgram.APIKey,
			Model:        cfg.Deepgram.Model,
			Language:     cfg.Deepgram.Language,
			SampleRate:   sessionCfg.InputSampleRate,
			SilenceFloor: cfg.Deepgram.SilenceFloor,
		}, mic, log)
	} else if cfg.HandsFree {
		log.Warn("hands-free requested but DEEPGRAM_API_KEY is not set")
	}

	manager, err := live.NewManager(live.Options{
		Config:     sessionCfg,
		Dialer:     dialer,
		Microphone: mic,
		Clock:      speaker,
		Sink:       speaker,
		Recognizer: recognizer,
		HandsFree:  cfg.HandsFree && recognizer != nil,
		Logger:     log,
	})
	if err != nil {
		return err
	}
	manager.Start()
	defer func() { _ = manager.Close() }()

	go printEvents(manager.Events())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nshutting down...")
		cancel()
	}()

	printBanner(sessionCfg.AssistantName, recognizer != nil)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch line {
			case "":
			case "/start":
				manager.RequestStart()
			case "/stop":
				manager.StopSession()
			case "/handsfree":
				manager.ToggleHandsFree()
			case "/history":
				printHistory(manager.History())
			case "/quit", "q":
				return nil
			default:
				fmt.Printf("unknown command %q\n", line)
			}
		}
	}
}

func printEvents(events <-chan live.Event) {
	for ev := range events {
		switch e := ev.(type) {
		case *live.VisualStatusChangedEvent:
			fmt.Printf("[%s]\n", e.To)
		case *live.TranscriptionEvent:
			if e.Record.Text != "" {
				fmt.Printf("%s: %s\n", e.Record.Sender, e.Record.Text)
			}
		case *live.WakeEvent:
			fmt.Printf("(wake: %q)\n", e.Text)
		case *live.ErrorEvent:
			fmt.Printf("error: %v\n", e.Err)
		case *live.SessionClosedEvent:
			fmt.Printf("session ended (%s)\n", e.Reason)
		}
	}
}

func printHistory(history []live.Transcription) {
	if len(history) == 0 {
		fmt.Println("no transcripts yet")
		return
	}
	for _, record := range history {
		fmt.Printf("%s  %-5s  %s\n",
			record.Timestamp.Format("15:04:05"), record.Sender, record.Text)
	}
}

func printBanner(name string, handsFree bool) {
	fmt.Printf("%s voice assistant\n", name)
	fmt.Println("  /start      start a session")
	fmt.Println("  /stop       end the session")
	if handsFree {
		fmt.Println("  /handsfree  toggle wake-word listening")
	}
	fmt.Println("  /history    print transcripts")
	fmt.Println("  /quit       exit")
	fmt.Println()
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	// Logs share the terminal with the conversation; keep them on stderr.
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}
