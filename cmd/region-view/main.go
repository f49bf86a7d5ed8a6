// Command region-view draws the live region layout and the robot's current
// region in a terminal, fed by a regionwatch server's watch streams.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/regionwatch/internal/config"
	"github.com/signalsfoundry/regionwatch/internal/logging"
	"github.com/signalsfoundry/regionwatch/internal/termview"
	"github.com/signalsfoundry/regionwatch/internal/transport/grpcapi"
)

type viewConfig struct {
	Addr     string `env:"REGIONWATCH_VIEW_ADDR" envDefault:"localhost:50051"`
	LogLevel string `env:"LOG_LEVEL"             envDefault:"error"`
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		config.Exitf("region-view: %v", err)
	}
	var cfg viewConfig
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("region-view: %v", err)
	}
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "regionwatch gRPC address")
	flag.Parse()

	// The terminal belongs to tcell, so logs go to stderr at error level only.
	log := logging.New(logging.Config{Level: cfg.LogLevel, Output: os.Stderr})

	client, err := grpcapi.Dial(cfg.Addr)
	if err != nil {
		config.Exitf("region-view: %v", err)
	}
	defer client.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		config.Exitf("region-view: %v", err)
	}
	if err := screen.Init(); err != nil {
		config.Exitf("region-view: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runErr := newViewer(screen, client, log).run(ctx)
	screen.Fini()
	if runErr != nil {
		config.Exitf("region-view: %v", runErr)
	}
}

type viewer struct {
	screen tcell.Screen
	client *grpcapi.Client
	view   *termview.View
	log    logging.Logger
}

func newViewer(screen tcell.Screen, client *grpcapi.Client, log logging.Logger) *viewer {
	return &viewer{screen: screen, client: client, view: termview.New(), log: log}
}

// run drives the screen until q, Escape or Ctrl-C is pressed, ctx is
// cancelled, or a watch stream fails.
func (v *viewer) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return v.watchMarkers(gctx) })
	g.Go(func() error { return v.watchRegion(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		// Wakes PollEvent so the event loop sees the cancellation.
		_ = v.screen.PostEvent(tcell.NewEventInterrupt(nil))
		return nil
	})

	v.draw()
	for {
		switch ev := v.screen.PollEvent().(type) {
		case nil:
			cancel()
			return g.Wait()
		case *tcell.EventResize:
			v.screen.Sync()
			v.draw()
		case *tcell.EventKey:
			if quitKey(ev) {
				cancel()
				return g.Wait()
			}
		case *tcell.EventInterrupt:
			if gctx.Err() != nil {
				cancel()
				return g.Wait()
			}
			v.draw()
		}
	}
}

func (v *viewer) draw() {
	v.view.Draw(v.screen)
	v.screen.Show()
}

func (v *viewer) redraw() {
	_ = v.screen.PostEvent(tcell.NewEventInterrupt(nil))
}

func (v *viewer) watchMarkers(ctx context.Context) error {
	stream, err := v.client.WatchMarkers(ctx)
	if err != nil {
		return streamErr(ctx, "watch markers", err)
	}
	for {
		m, err := grpcapi.RecvMarker(stream)
		if err != nil {
			return streamErr(ctx, "watch markers", err)
		}
		v.view.Update(m)
		v.redraw()
	}
}

func (v *viewer) watchRegion(ctx context.Context) error {
	stream, err := v.client.WatchRegion(ctx)
	if err != nil {
		return streamErr(ctx, "watch region", err)
	}
	for {
		msg, err := stream.Recv()
		if err != nil {
			return streamErr(ctx, "watch region", err)
		}
		if name := msg.GetValue(); name != v.view.Region() {
			v.log.Debug(ctx, "region changed", logging.String("region", name))
		}
		v.view.SetRegion(msg.GetValue())
		v.redraw()
	}
}

// streamErr maps normal stream shutdown to nil.
func streamErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil || errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

func quitKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyRune:
		return ev.Rune() == 'q' || ev.Rune() == 'Q'
	}
	return false
}
