// Command client joins a canvas room from the terminal. Strokes are read as
// commands on stdin and the resulting board can be saved as a PNG.
//
//	stroke 10,10 40,40 80,20
//	tool erase 20
//	undo | redo | clear | users | save board.png | quit
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/sync/errgroup"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/client"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/config"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/discovery"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/models"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	serverURL := flag.String("url", "", "websocket URL of the server; discovered over mDNS when empty")
	room := flag.String("room", config.DefaultRoomID, "room to join")
	name := flag.String("name", "anonymous", "display name")
	color := flag.String("color", config.DefaultColor, "stroke color as #RRGGBB")
	width := flag.Int("width", config.DefaultCanvasWidth, "canvas width")
	height := flag.Int("height", config.DefaultCanvasHeight, "canvas height")
	maxOps := flag.Int("max-operations", config.DefaultMaxOperations, "server log cap; sizes the history read limit")
	out := flag.String("out", "", "write the board to this PNG on exit")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	target, err := resolveURL(ctx, *serverURL, *room)
	if err != nil {
		return err
	}

	surface := client.NewRasterSurface(*width, *height)
	var canvas *client.Canvas
	conn := client.NewConnection(client.Options{
		URL:       target,
		UserName:  *name,
		UserColor: *color,
		ReadLimit: config.HistoryReadLimit(*maxOps),
		OnMessage: func(m models.Message) { canvas.HandleMessage(m) },
		OnStateChange: func(s client.State) {
			slog.Info("Connection state", "state", s.String())
			canvas.HandleStateChange(s)
		},
	})
	canvas = client.NewCanvas(surface, conn, client.CanvasOptions{Color: *color})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		canvas.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return conn.Run(ctx)
	})

	// Reading stdin cannot be interrupted, so the loop lives outside the
	// group and ends the session when input runs out.
	go func() {
		readCommands(ctx, os.Stdin, canvas, *out)
		stop()
	}()

	err = g.Wait()
	if *out != "" {
		if saveErr := surface.SavePNG(*out); saveErr != nil {
			return errors.Join(err, saveErr)
		}
		slog.Info("Saved board", "path", *out)
	}
	return err
}

func resolveURL(ctx context.Context, raw, room string) (string, error) {
	if raw == "" {
		addr, err := discovery.Browse(ctx, 3*time.Second)
		if err != nil {
			return "", fmt.Errorf("find server: %w", err)
		}
		raw = "ws://" + addr + "/ws"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Query().Get("room") == "" && !strings.HasPrefix(strings.TrimPrefix(u.Path, "/ws"), "/") {
		q := u.Query()
		q.Set("room", room)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func readCommands(ctx context.Context, r io.Reader, canvas *client.Canvas, out string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" {
			return
		}
		if err := runCommand(canvas, fields, out); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func runCommand(canvas *client.Canvas, fields []string, out string) error {
	switch cmd, args := fields[0], fields[1:]; cmd {
	case "stroke":
		points, err := parsePoints(args)
		if err != nil {
			return err
		}
		canvas.Stroke(points)

	case "tool":
		if len(args) == 0 {
			return errors.New("usage: tool ink|erase [color] [width]")
		}
		tool := models.Tool(args[0])
		if tool != models.ToolInk && tool != models.ToolErase {
			return fmt.Errorf("unknown tool %q", args[0])
		}
		var color string
		var width int
		for _, a := range args[1:] {
			if strings.HasPrefix(a, "#") {
				color = a
				continue
			}
			w, err := strconv.Atoi(a)
			if err != nil {
				return fmt.Errorf("invalid width %q", a)
			}
			width = w
		}
		canvas.SetTool(tool, color, width)

	case "undo":
		if !canvas.Undo() {
			return errors.New("nothing to undo")
		}
	case "redo":
		if !canvas.Redo() {
			return errors.New("nothing to redo")
		}
	case "clear":
		canvas.Clear()

	case "users":
		for _, u := range canvas.Presence().Users() {
			fmt.Printf("%s\t%s\t%s\n", u.UserID, u.UserName, u.UserColor)
		}

	case "save":
		path := out
		if len(args) > 0 {
			path = args[0]
		}
		if path == "" {
			return errors.New("usage: save <file.png>")
		}
		return gg.SavePNG(path, canvas.Snapshot())

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func parsePoints(args []string) ([]client.Point, error) {
	if len(args) == 0 {
		return nil, errors.New("usage: stroke x,y [x,y ...]")
	}
	points := make([]client.Point, 0, len(args))
	for _, a := range args {
		xs, ys, ok := strings.Cut(a, ",")
		if !ok {
			return nil, fmt.Errorf("invalid point %q", a)
		}
		x, err := strconv.ParseFloat(xs, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid point %q", a)
		}
		y, err := strconv.ParseFloat(ys, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid point %q", a)
		}
		points = append(points, client.Point{X: x, Y: y})
	}
	return points, nil
}
