// Copyright 2026 The proj Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command proj is a per-user developer-environment manager: it registers
// named projects, launches their dev servers under a stable
// <project>.localhost hostname, and routes to whichever ephemeral port the
// server picked.
package main // import "proj.sh/proj"

import (
	"context"
	"fmt"
	"log"
	"os"

	cli "github.com/urfave/cli/v2"

	"proj.sh/proj/internal/client"
	"proj.sh/proj/internal/daemonize"
	"proj.sh/proj/internal/ipc"
	"proj.sh/proj/internal/service"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("proj: ")

	cfg, err := service.LoadConfig()
	if err != nil {
		log.Fatalln(err)
	}

	app := &cli.App{
		Name:                 "proj",
		Usage:                "per-user developer-environment manager",
		HideVersion:          true,
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name:      "new",
				Usage:     "register the current directory as a named project",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					return cmdNew(c.Context, cfg, c.Args().First())
				},
			},
			{
				Name:  "ls",
				Usage: "list every registered project and its status",
				Action: func(c *cli.Context) error {
					return cmdList(c.Context, cfg)
				},
			},
			{
				Name:  "daemon",
				Usage: "start the background service, by default detached",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "f", Usage: "run in the foreground instead of forking a detached copy"},
				},
				Action: func(c *cli.Context) error {
					if c.Bool("f") {
						return service.Run(cfg)
					}
					return cmdDaemonize(cfg)
				},
			},
		},
		Action: func(c *cli.Context) error {
			return cmdDefault(c.Context, cfg, c.Args().Slice())
		},
	}

	if err := app.Run(os.Args); err != nil {
		if exitErr, ok := err.(cli.ExitCoder); ok {
			os.Exit(exitErr.ExitCode())
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cmdDefault implements the non-subcommand verb table from the CLI's wire
// contract: "<name> run <argv…>", "<name> <argv…>", "<name> stop",
// "<name> logs [--html FILE]", "<name>" (info), and bare "proj"
// (ping+status).
func cmdDefault(ctx context.Context, cfg service.Config, args []string) error {
	if len(args) == 0 {
		return cmdPingStatus(ctx, cfg)
	}

	name := args[0]
	rest := args[1:]

	c, err := client.Dial(cfg)
	if err != nil {
		return exitCode(2, err)
	}

	switch {
	case len(rest) == 0:
		return cmdInfo(ctx, c, name)
	case rest[0] == "stop":
		return cmdStop(ctx, c, name)
	case rest[0] == "logs":
		return cmdLogs(ctx, c, name, rest[1:])
	case rest[0] == "run":
		return cmdRun(ctx, c, name, rest[1:])
	default:
		return cmdRun(ctx, c, name, rest)
	}
}

// cmdDaemonize forks a detached "proj daemon -f" and returns immediately,
// the manual equivalent of the auto-spawn a client performs on a cold
// start.
func cmdDaemonize(cfg service.Config) error {
	argv0, err := os.Executable()
	if err != nil {
		return exitCode(1, err)
	}
	if err := daemonize.Spawn(argv0, os.Environ()); err != nil {
		return exitCode(1, err)
	}
	fmt.Println("proj daemon started")
	return nil
}

func cmdNew(ctx context.Context, cfg service.Config, name string) error {
	if name == "" {
		return exitCode(1, fmt.Errorf("usage: proj new <name>"))
	}
	cwd, err := os.Getwd()
	if err != nil {
		return exitCode(1, err)
	}

	c, err := client.Dial(cfg)
	if err != nil {
		return exitCode(2, err)
	}
	resp, err := c.Do(ctx, ipc.Request{Op: ipc.OpCreate, Name: name, Path: cwd})
	if err != nil {
		return exitCode(2, err)
	}
	if !resp.Ok {
		return exitCode(1, fmt.Errorf("%s: %s", resp.Kind, resp.Message))
	}
	fmt.Printf("created %s at %s\n", resp.Project.Name, resp.Project.Path)
	return nil
}

func cmdRun(ctx context.Context, c *client.Client, name string, argv []string) error {
	if len(argv) == 0 {
		return exitCode(1, fmt.Errorf("usage: proj %s run <command> [args…]", name))
	}
	resp, err := c.Do(ctx, ipc.Request{Op: ipc.OpRun, Name: name, Argv: argv})
	if err != nil {
		return exitCode(2, err)
	}
	if !resp.Ok {
		return exitCode(1, fmt.Errorf("%s: %s", resp.Kind, resp.Message))
	}
	fmt.Printf("%s running, pid %d, http://%s.localhost\n", name, resp.PID, name)
	return nil
}

func cmdStop(ctx context.Context, c *client.Client, name string) error {
	resp, err := c.Do(ctx, ipc.Request{Op: ipc.OpStop, Name: name})
	if err != nil {
		return exitCode(2, err)
	}
	if !resp.Ok {
		return exitCode(1, fmt.Errorf("%s: %s", resp.Kind, resp.Message))
	}
	fmt.Printf("%s stopped\n", name)
	return nil
}

func cmdInfo(ctx context.Context, c *client.Client, name string) error {
	resp, err := c.Do(ctx, ipc.Request{Op: ipc.OpInfo, Name: name})
	if err != nil {
		return exitCode(2, err)
	}
	if !resp.Ok {
		return exitCode(1, fmt.Errorf("%s: %s", resp.Kind, resp.Message))
	}
	p := resp.Project
	fmt.Printf("%s\t%s\t%s\n", p.Name, p.Path, p.Status())
	return nil
}

// cmdLogs fetches the project's captured dev-server output via the info op
// and either prints it raw or, with --html FILE, renders it to a static
// HTML snippet.
func cmdLogs(ctx context.Context, c *client.Client, name string, args []string) error {
	htmlPath, err := parseLogsArgs(args)
	if err != nil {
		return exitCode(1, err)
	}

	resp, err := c.Do(ctx, ipc.Request{Op: ipc.OpInfo, Name: name})
	if err != nil {
		return exitCode(2, err)
	}
	if !resp.Ok {
		return exitCode(1, fmt.Errorf("%s: %s", resp.Kind, resp.Message))
	}

	if htmlPath == "" {
		fmt.Print(resp.RecentOutput)
		return nil
	}
	if err := client.RenderLogsHTML(resp.RecentOutput, htmlPath); err != nil {
		return exitCode(1, err)
	}
	fmt.Printf("wrote %s\n", htmlPath)
	return nil
}

// parseLogsArgs recognizes the single "--html FILE" flag accepted after the
// "logs" verb.
func parseLogsArgs(args []string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	if args[0] != "--html" {
		return "", fmt.Errorf("usage: proj <name> logs [--html FILE]")
	}
	if len(args) != 2 || args[1] == "" {
		return "", fmt.Errorf("usage: proj <name> logs [--html FILE]")
	}
	return args[1], nil
}

func cmdList(ctx context.Context, cfg service.Config) error {
	c, err := client.Dial(cfg)
	if err != nil {
		return exitCode(2, err)
	}
	resp, err := c.Do(ctx, ipc.Request{Op: ipc.OpStatus})
	if err != nil {
		return exitCode(2, err)
	}
	for _, p := range resp.Projects {
		fmt.Printf("%s\t%s\t%s\n", p.Name, p.Path, p.Status())
	}
	return nil
}

func cmdPingStatus(ctx context.Context, cfg service.Config) error {
	c, err := client.Dial(cfg)
	if err != nil {
		return exitCode(2, err)
	}
	ping, err := c.Do(ctx, ipc.Request{Op: ipc.OpPing})
	if err != nil {
		return exitCode(2, err)
	}
	status, err := c.Do(ctx, ipc.Request{Op: ipc.OpStatus})
	if err != nil {
		return exitCode(2, err)
	}
	fmt.Printf("proj %s, http port %d, %d project(s)\n", ping.Version, status.HTTPPort, len(status.Projects))
	return nil
}

// exitCode wraps err so main translates it to the CLI's exit-code contract
// (0 success, 1 user/operation error, 2 service unreachable) without the
// rest of the command functions needing to call os.Exit directly.
func exitCode(code int, err error) error {
	return cli.Exit(err.Error(), code)
}
