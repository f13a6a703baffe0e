package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/map-engine/pkg/engine"
	"github.com/jwebster45206/map-engine/pkg/loop"
	"github.com/jwebster45206/map-engine/pkg/scenario"
	"github.com/jwebster45206/map-engine/pkg/stage"
	"github.com/jwebster45206/map-engine/pkg/state"
)

// maxAutoSteps bounds an automatic playthrough.
const maxAutoSteps = 1000

// settleSeconds is how long autoplay waits for queued unlocks before it
// gives up on finding another open stage.
const settleSeconds = 30

var simEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type simulateOptions struct {
	script   string
	start    string
	seed     uint64
	wrong    int
	snapshot bool
}

func newSimulateCmd() *cobra.Command {
	var opts simulateOptions

	cmd := &cobra.Command{
		Use:   "simulate [scenario file]",
		Short: "Play a scenario on a simulated clock",
		Long: `Runs the map engine against a scenario without a server. With --script
the steps are read from a file, one per line:

  click <stage>
  score <stage> <exercise> <score> [max]
  close | continue | finish | reset | solutions
  advance <duration>
  expect <stage> <state>

Without a script every open stage is played in order until the map ends.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := checkFile(args[0], true)
			if err != nil {
				return err
			}
			return simulate(cmd.OutOrStdout(), sc, opts)
		},
	}
	cmd.Flags().StringVar(&opts.script, "script", "", "File with one step per line")
	cmd.Flags().StringVar(&opts.start, "start", "", "Start stage ID (default random)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 1, "Seed for the start stage choice")
	cmd.Flags().IntVar(&opts.wrong, "wrong", 0, "Answers to get wrong in an automatic playthrough")
	cmd.Flags().BoolVar(&opts.snapshot, "snapshot", false, "Print the final snapshot as JSON")
	return cmd
}

// simulation drives one engine on a manual clock.
type simulation struct {
	sc    *scenario.Scenario
	e     *engine.Engine
	clock *loop.Manual
	out   io.Writer
	wrong int
	tried map[string]bool
}

func simulate(out io.Writer, sc *scenario.Scenario, opts simulateOptions) error {
	clock := loop.NewManual(simEpoch)
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed))
	e, err := engine.New(sc,
		engine.WithScheduler(clock),
		engine.WithListener(&printer{out: out, clock: clock}),
		engine.WithStartPicker(rng.IntN),
		engine.WithStartStage(opts.start),
	)
	if err != nil {
		return err
	}
	sim := &simulation{sc: sc, e: e, clock: clock, out: out, wrong: opts.wrong, tried: make(map[string]bool)}

	e.Start()
	clock.Flush()
	fmt.Fprintf(out, "Started %q at %s\n", sc.Name, e.StartStageID())

	if opts.script != "" {
		err = sim.runScript(opts.script)
	} else {
		sim.autoplay()
	}
	if e.IsFinished() || e.IsGameOver() {
		// Timers are stopped; let held back notifications play out.
		clock.Advance(settleSeconds * time.Second)
	}
	e.Destroy()
	if err != nil {
		return err
	}

	p := e.Progress()
	fmt.Fprintf(out, "Result: score %d/%d, %d/%d stages cleared", p.Score, p.MaxScore, p.ClearedStages, p.TotalStages)
	switch {
	case e.IsFinished():
		fmt.Fprint(out, ", finished")
	case e.IsGameOver():
		fmt.Fprintf(out, ", game over (%s)", e.GameOverReason())
	}
	fmt.Fprintln(out)

	if opts.snapshot {
		data, err := json.MarshalIndent(e.CurrentState(), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		fmt.Fprintln(out, string(data))
	}
	return nil
}

func (s *simulation) runScript(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := s.step(strings.Fields(text)); err != nil {
			return fmt.Errorf("script line %d: %w", line, err)
		}
		s.clock.Flush()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	return nil
}

func (s *simulation) step(fields []string) error {
	args := fields[1:]
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s needs %d arguments", fields[0], n)
		}
		return nil
	}

	switch fields[0] {
	case "click":
		if err := need(1); err != nil {
			return err
		}
		s.e.Click(args[0])
	case "score":
		if err := need(3); err != nil {
			return err
		}
		score, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid score %q", args[2])
		}
		maxScore := 0
		if len(args) > 3 {
			if maxScore, err = strconv.Atoi(args[3]); err != nil {
				return fmt.Errorf("invalid max score %q", args[3])
			}
		}
		s.e.HandleScored(args[0], args[1], score, maxScore)
	case "close":
		s.e.CloseExercise()
	case "continue":
		s.e.ContinueExercise()
	case "finish":
		s.e.Finish()
	case "reset":
		s.e.Reset()
	case "solutions":
		s.e.ShowSolutions()
	case "advance":
		if err := need(1); err != nil {
			return err
		}
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return fmt.Errorf("invalid duration %q", args[0])
		}
		s.clock.Advance(d)
	case "expect":
		if err := need(2); err != nil {
			return err
		}
		st := s.e.Stage(args[0])
		if st == nil {
			return fmt.Errorf("unknown stage %q", args[0])
		}
		if got := st.State().String(); got != args[1] {
			return fmt.Errorf("expected %s to be %s, got %s", args[0], args[1], got)
		}
	default:
		return fmt.Errorf("unknown step %q", fields[0])
	}
	return nil
}

// autoplay clicks each open stage once, in map order, and answers its
// exercises until the map ends or nothing is left to open.
func (s *simulation) autoplay() {
	for range maxAutoSteps {
		if s.e.IsFinished() || s.e.IsGameOver() {
			return
		}
		st := s.nextStage()
		for wait := 0; st == nil && wait < settleSeconds && !s.e.IsFinished() && !s.e.IsGameOver(); wait++ {
			s.clock.Advance(time.Second)
			st = s.nextStage()
		}
		if s.e.IsFinished() || s.e.IsGameOver() {
			return
		}
		if st == nil {
			s.e.Finish()
			return
		}
		s.tried[st.ID()] = true
		s.e.Click(st.ID())
		if id := s.e.OpenStage(); id != "" {
			s.answer(id)
			s.e.CloseExercise()
		}
		s.clock.Advance(s.sc.AnimationDuration() + time.Second)
	}
}

func (s *simulation) nextStage() *stage.Stage {
	for _, st := range s.e.Stages() {
		if st.State() == state.Open && !s.tried[st.ID()] {
			return st
		}
	}
	return nil
}

func (s *simulation) answer(stageID string) {
	def := s.sc.Stage(stageID)
	if def == nil || def.Content == nil {
		return
	}
	for _, ex := range def.Content.Exercises {
		score := ex.MaxScore
		if isTask := ex.IsTask == nil || *ex.IsTask; isTask && s.wrong > 0 {
			s.wrong--
			score = 0
		}
		s.e.HandleScored(stageID, ex.ID, score, ex.MaxScore)
		if s.e.IsGameOver() {
			return
		}
	}
}

// printer writes engine notifications with the simulated time.
type printer struct {
	engine.NoopListener
	out   io.Writer
	clock *loop.Manual
}

func (p *printer) printf(format string, args ...any) {
	elapsed := p.clock.Now().Sub(simEpoch)
	fmt.Fprintf(p.out, "[%7s] %s\n", elapsed.Round(time.Millisecond), fmt.Sprintf(format, args...))
}

func (p *printer) OnStageStateChanged(stageID string, from, to state.State) {
	p.printf("stage %s: %s -> %s", stageID, from, to)
}

func (p *printer) OnAccessRestrictionsHit(d engine.AccessDenied) {
	if len(d.Failed) > 0 {
		p.printf("stage %s denied (%s: %s)", d.StageID, d.MessageKey, strings.Join(d.Failed, ", "))
		return
	}
	p.printf("stage %s denied (%s)", d.StageID, d.MessageKey)
}

func (p *printer) OnExerciseOpened(stageID string, solutions bool) {
	if solutions {
		p.printf("exercise %s opened with solutions", stageID)
		return
	}
	p.printf("exercise %s opened", stageID)
}

func (p *printer) OnExerciseClosed(stageID string) {
	p.printf("exercise %s closed", stageID)
}

func (p *printer) OnExerciseCompleted(stageID string, score, maxScore int) {
	p.printf("exercise %s completed %d/%d", stageID, score, maxScore)
}

func (p *printer) OnTimeoutWarning(stageID string, remaining time.Duration) {
	p.printf("timer %s warning, %s left", timerName(stageID), remaining)
}

func (p *printer) OnTimeout(stageID string) {
	p.printf("timer %s expired", timerName(stageID))
}

func (p *printer) OnLivesChanged(lives int, unlimited bool) {
	if !unlimited {
		p.printf("lives %d", lives)
	}
}

func (p *printer) OnSpecialStage(stageID string, special stage.Special) {
	p.printf("special %s at %s", special, stageID)
}

func (p *printer) OnOpenLink(stageID, url string) {
	p.printf("link %s from %s", url, stageID)
}

func (p *printer) OnFinishAvailable(score, maxScore int) {
	p.printf("finish available at %d/%d", score, maxScore)
}

func (p *printer) OnFinished(score, maxScore int) {
	p.printf("finished %d/%d", score, maxScore)
}

func (p *printer) OnGameOver(reason engine.GameOverReason) {
	p.printf("game over: %s", reason)
}

func timerName(stageID string) string {
	if stageID == "" {
		return "global"
	}
	return stageID
}
