package cli

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"veo-wizard/internal/mockbackend"
	"veo-wizard/internal/model"
)

func runMockServer(args []string) error {
	fs := flag.NewFlagSet("mock-server", flag.ContinueOnError)
	addr := fs.String("addr", "127.0.0.1:8000", "listen address")
	quiet := fs.Bool("quiet", false, "do not log requests")
	demo := fs.Bool("demo", false, "seed a demo project with three rows")
	failRow := fs.Int("fail-row", -1, "0-based row whose generation fails (-1 for none)")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	var out io.Writer = os.Stderr
	if *quiet {
		out = io.Discard
	}
	srv := mockbackend.New(mockbackend.Options{
		Logger: log.New(out, "mock-server ", log.LstdFlags),
	})
	if *failRow >= 0 {
		srv.Script(*failRow,
			model.StatusReport{Status: model.StatusProcessing},
			model.StatusReport{Status: model.StatusFailed, Error: "Video generation failed"},
		)
	}
	base := "http://" + strings.TrimSpace(*addr)
	fmt.Printf("mock backend listening on %s\n", base)
	if *demo {
		id := srv.AddProject("Demo", []string{"topic", "mood"}, []map[string]any{
			{"topic": "city at night", "mood": "calm"},
			{"topic": "mountain sunrise", "mood": "epic"},
			{"topic": "ocean waves", "mood": "dreamy"},
		})
		fmt.Printf("demo project: %s%s\n", base, "/step2/"+id+"/")
	}
	fmt.Printf("try: veo-wizard wizard --base-url %s\n", base)
	return srv.Run(strings.TrimSpace(*addr))
}
