package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/regionwatch/core"
	"github.com/signalsfoundry/regionwatch/internal/hub"
	"github.com/signalsfoundry/regionwatch/internal/logging"
	"github.com/signalsfoundry/regionwatch/internal/transport/grpcapi"
	"github.com/signalsfoundry/regionwatch/model"
)

func startServer(t *testing.T, ctx context.Context) string {
	t.Helper()
	store, err := core.NewRegionStore([]model.Region{{
		Name:     "office",
		Vertices: []model.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}},
	}})
	if err != nil {
		t.Fatalf("NewRegionStore() error = %v", err)
	}
	hubs := hub.NewPublisher()
	t.Cleanup(hubs.Close)
	membership, err := core.NewMembershipService(store, hubs)
	if err != nil {
		t.Fatalf("NewMembershipService() error = %v", err)
	}
	srv, err := grpcapi.NewServer("127.0.0.1:0", grpcapi.NewService(membership, hubs, logging.Noop()), nil, logging.Noop())
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	go func() { _ = srv.Serve(ctx) }()
	t.Cleanup(srv.Stop)
	return srv.Addr()
}

func statusRow(s tcell.SimulationScreen) string {
	w, h := s.Size()
	var b strings.Builder
	for x := 0; x < w; x++ {
		r, _, _, _ := s.GetContent(x, h-1)
		b.WriteRune(r)
	}
	return b.String()
}

func TestViewerShowsLayoutAndRegion(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	addr := startServer(t, ctx)

	client, err := grpcapi.Dial(addr)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()

	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer screen.Fini()
	screen.SetSize(40, 12)

	v := newViewer(screen, client, logging.Noop())
	errCh := make(chan error, 1)
	go func() { errCh <- v.run(ctx) }()

	// Watch streams attach asynchronously, so keep reporting until the
	// region shows up.
	for !strings.HasPrefix(statusRow(screen), "region: office  markers: 2") {
		if ctx.Err() != nil {
			t.Fatalf("status row = %q", statusRow(screen))
		}
		if _, err := client.ReportPosition(ctx, model.Point{X: 5, Y: 5}); err != nil {
			t.Fatalf("ReportPosition() error = %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-ctx.Done():
		t.Fatalf("run() did not return after q")
	}
}

func TestQuitKey(t *testing.T) {
	tests := []struct {
		ev   *tcell.EventKey
		want bool
	}{
		{tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone), true},
		{tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), true},
		{tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl), true},
		{tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone), false},
		{tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), false},
	}
	for _, tt := range tests {
		if got := quitKey(tt.ev); got != tt.want {
			t.Fatalf("quitKey(%v) = %v, want %v", tt.ev.Name(), got, tt.want)
		}
	}
}
