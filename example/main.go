package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/jpalmerr/watchboard"
)

const eventsTopic = "arena.handles"

func main() {
	world := newWorld(time.Now().UnixNano())

	tick, err := watchboard.NewStatic("Tick", world.Tick, watchboard.WithGroup("World"), watchboard.WithOrder(1))
	if err != nil {
		slog.Error("failed to create static", "error", err)
		os.Exit(1)
	}
	speed, err := watchboard.NewStatic("Speed", func() float64 { return world.Speed },
		watchboard.WithGroup("World"),
		watchboard.WithOrder(2),
		watchboard.WithFormat("%.1fx"),
		watchboard.WithSetter(func(v float64) { world.Speed = v }),
	)
	if err != nil {
		slog.Error("failed to create static", "error", err)
		os.Exit(1)
	}

	targets := make([]any, 0, len(world.Players)+len(world.Enemies))
	for _, p := range world.Players {
		targets = append(targets, p)
	}
	for _, e := range world.Enemies {
		targets = append(targets, e)
	}

	// lifecycle events go through an in-process broker and are logged
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, watermill.NewSlogLogger(slog.Default()))
	defer pubSub.Close()

	wb, err := watchboard.New(
		watchboard.WithTitle("Arena"),
		watchboard.WithPort(8080),
		watchboard.WithType[Player](),
		watchboard.WithType[Enemy](),
		watchboard.WithGenericType[Tracker[any]](),
		watchboard.WithStatic[World](tick, speed),
		watchboard.Annotate[Player]("Status", "order=7"),
		watchboard.WithTarget(targets...),
		watchboard.WithRefreshThreshold(100*time.Millisecond),
		watchboard.WithValidator(world.Step),
		watchboard.WithPublisher(pubSub, eventsTopic),
	)
	if err != nil {
		slog.Error("failed to create watchboard", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  Watchboard demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 in your browser")
	fmt.Println("  3 players and 2 enemies, stepped every refresh pass")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	messages, err := pubSub.Subscribe(ctx, eventsTopic)
	if err != nil {
		slog.Error("failed to subscribe to handle events", "error", err)
		os.Exit(1)
	}
	go logHandleEvents(messages)

	if err := wb.Start(ctx); err != nil {
		slog.Error("watchboard error", "error", err)
		os.Exit(1)
	}
}

// logHandleEvents logs created and disposed Handles. Updates are acked
// without logging.
func logHandleEvents(messages <-chan *message.Message) {
	for msg := range messages {
		if event := msg.Metadata.Get("event"); event != string(watchboard.HandleUpdated) {
			slog.Debug("handle event", "event", event, "identity", msg.Metadata.Get("identity"))
		}
		msg.Ack()
	}
}
