// Command sketchrelay is a minimal terminal front end for the relay
// engine: enough to host or join a session, watch the roster and rounds
// move, and play a round from a keyboard. The real rendering surface is
// whatever UI embeds the client package; this one just proves the engine
// end to end.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"go.uber.org/zap"
	cli "gopkg.in/urfave/cli.v1"

	"sketchrelay/client"
	"sketchrelay/config"
	"sketchrelay/game"
	"sketchrelay/logger"
	"sketchrelay/store"
)

func main() {
	app := cli.NewApp()
	app.Name = "sketchrelay"
	app.Usage = "two-player draw and guess over a shared store"

	nameFlag := cli.StringFlag{Name: "name", Usage: "player name"}
	codeFlag := cli.StringFlag{Name: "code", Usage: "session code"}

	app.Commands = []cli.Command{
		{
			Name:  "create",
			Usage: "host a new session",
			Flags: []cli.Flag{nameFlag, codeFlag},
			Action: func(c *cli.Context) error {
				return run(c.String("name"), c.String("code"), true)
			},
		},
		{
			Name:  "join",
			Usage: "join an existing session",
			Flags: []cli.Flag{nameFlag, codeFlag},
			Action: func(c *cli.Context) error {
				return run(c.String("name"), c.String("code"), false)
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(name, code string, host bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init(cfg.LogLevel)

	if name == "" {
		return cli.NewExitError("a player name is required (--name)", 1)
	}
	if !host && code == "" {
		return cli.NewExitError("a session code is required to join (--code)", 1)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cl *client.Client
	if host {
		cl, err = client.Host(ctx, st, code, name)
	} else {
		cl, err = client.Join(ctx, st, code, name)
	}
	if err != nil {
		return err
	}
	defer cl.Leave()
	cl.PollEvery = cfg.PollInterval

	fmt.Printf("session %s as %s (index %d)\n", cl.Code(), name, cl.Index())

	go func() {
		if err := cl.Run(ctx); err != nil && ctx.Err() == nil {
			zap.L().Error("session watch ended", zap.Error(err))
		}
	}()
	go printSnapshots(ctx, cl, name)
	go printPeer(ctx, cl)

	fmt.Println(`commands: "start", "quit", or type a guess`)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "quit":
			return nil
		case "start":
			if err := cl.Start(ctx); err != nil {
				fmt.Printf("start failed: %s\n", err)
			}
		default:
			correct, err := cl.SubmitGuess(ctx, line)
			switch {
			case err != nil:
				fmt.Printf("guess failed: %s\n", err)
			case correct:
				fmt.Println("correct! next round")
			default:
				fmt.Println("nope")
			}
		}
	}
	return scanner.Err()
}

func printSnapshots(ctx context.Context, cl *client.Client, name string) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-cl.Snapshots():
			if !ok {
				return
			}
			players := make([]string, 0, len(s.Players))
			for p := range s.Players {
				players = append(players, p)
			}
			fmt.Printf("round %d, players %s\n", s.Round, strings.Join(players, ", "))
			if !s.Ready() {
				fmt.Println("waiting for a second player...")
				continue
			}
			role, _ := s.Role(name)
			target, _ := s.Target(name)
			if s.Started() && role == game.Drawer {
				fmt.Printf("you draw %q for %s\n", strings.ToUpper(s.Word), target)
			} else if s.Started() {
				fmt.Printf("you guess for %s\n", target)
			}
		}
	}
}

func printPeer(ctx context.Context, cl *client.Client) {
	strokes := -1
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-cl.PeerDrawings():
			if !ok {
				return
			}
			if len(d) != strokes {
				strokes = len(d)
				fmt.Printf("peer canvas: %d strokes\n", strokes)
			}
		}
	}
}

func openStore(cfg *config.AppConfig) (store.SessionStore, error) {
	switch cfg.Store {
	case "memory":
		// Single-process only; both players must share this process.
		return store.NewMemory(), nil
	case "redis":
		r := store.NewRedis(cfg.RedisAddr)
		r.LeaseTTL = cfg.LeaseTTL
		return r, nil
	case "dynamo":
		sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.AWSRegion)})
		if err != nil {
			return nil, err
		}
		d := store.NewDynamo(dynamodb.New(sess), cfg.DynamoTable)
		d.LeaseTTL = cfg.LeaseTTL
		d.PollInterval = cfg.PollInterval
		return d, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
}
