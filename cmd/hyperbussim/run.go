package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/hyperbus/datarecording"
	"github.com/sarchlab/hyperbus/mem/acceptancetests/memaccessagent"
	"github.com/sarchlab/hyperbus/mem/hyperbus"
	"github.com/sarchlab/hyperbus/mem/hyperbus/device"
	"github.com/sarchlab/hyperbus/mem/mem"
	"github.com/sarchlab/hyperbus/monitoring"
	"github.com/sarchlab/hyperbus/sim/hooking"
	"github.com/sarchlab/hyperbus/sim/id"
	"github.com/sarchlab/hyperbus/sim/modeling"
	"github.com/sarchlab/hyperbus/sim/timing"
	"github.com/sarchlab/hyperbus/tracing"
)

type runOptions struct {
	config

	pattern     string
	reads       int
	startAddr   uint64
	maxAddr     uint64
	addrs       []string
	addresses   []uint64
	seed        int64
	image       string
	imageOffset uint64
	stallLimit  int
	monitor     bool
	openBrowser bool
	logEvents   bool
	logMsgs     bool
	parallelIDs bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a read stream through the controller.",
	Long: `Run builds the devices, the controller and an access agent, ` +
		`issues the reads one at a time and checks every returned word. ` +
		`Defaults come from HYPERBUS_* environment variables; flags override them.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := runOpts.resolve(cmd); err != nil {
			return err
		}

		sim, err := buildSimulation(runOpts)
		if err != nil {
			return err
		}

		if err := sim.run(); err != nil {
			return err
		}

		sim.report(cmd.OutOrStdout())

		if sim.agent.Mismatches > 0 {
			return errors.Errorf("%d reads returned wrong data",
				sim.agent.Mismatches)
		}

		return nil
	},
}

func init() {
	f := runCmd.Flags()

	f.StringVar(&runOpts.Variant, "variant", "",
		"Device variant: hyperflash, hyperram or hyperram-ll")
	f.Uint8Var(&runOpts.Latency, "latency", 0,
		"Initial latency in clock cycles, 0 for the variant default")
	f.IntVar(&runOpts.ChipSelects, "chip-selects", 1,
		"Number of chip selects, each with one device")
	f.Float64Var(&runOpts.FreqMHz, "freq-mhz", 100, "Controller clock in MHz")
	f.StringVar(&runOpts.TraceDB, "trace-db", "",
		"Record the request traces into this SQLite database")
	f.IntVar(&runOpts.MonitorPort, "monitor-port", 0,
		"Port of the monitoring server, implies --monitor")

	f.StringVar(&runOpts.pattern, "pattern", "sequential",
		"Access pattern: sequential, page-crossing, random or list")
	f.IntVar(&runOpts.reads, "reads", 1000, "Number of reads to issue")
	f.Uint64Var(&runOpts.startAddr, "start-addr", 0,
		"Byte address of the first read")
	f.Uint64Var(&runOpts.maxAddr, "max-addr", 1<<20,
		"Reads wrap around below this byte address")
	f.StringSliceVar(&runOpts.addrs, "addr", nil,
		"Explicit read byte addresses, selects the list pattern")
	f.Int64Var(&runOpts.seed, "seed", 1, "Seed of the random pattern and fill")
	f.StringVar(&runOpts.image, "image", "",
		"Binary image loaded into the memory instead of random data")
	f.Uint64Var(&runOpts.imageOffset, "image-offset", 0,
		"Byte address where the image is loaded")
	f.IntVar(&runOpts.stallLimit, "stall-limit", 1000,
		"Cycles a request may wait before it is reported as stalled")
	f.BoolVar(&runOpts.monitor, "monitor", false,
		"Serve the monitoring web page while simulating")
	f.BoolVar(&runOpts.openBrowser, "open-browser", false,
		"Open the monitoring web page in a browser")
	f.BoolVar(&runOpts.logEvents, "log-events", false, "Print every event")
	f.BoolVar(&runOpts.logMsgs, "log-msgs", false,
		"Print every message the controller sends or receives")
	f.BoolVar(&runOpts.parallelIDs, "parallel-ids", false,
		"Use globally unique message IDs, so that traces of several runs "+
			"never collide")

	rootCmd.AddCommand(runCmd)
}

// resolve fills the options that were not given on the command line from the
// environment.
func (o *runOptions) resolve(cmd *cobra.Command) error {
	env, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	o.config = mergeConfig(env, o.config, cmd.Flags().Changed)

	if o.MonitorPort != 0 || o.openBrowser {
		o.monitor = true
	}

	return o.applyAddresses(cmd.Flags().Changed("reads"))
}

// applyAddresses switches to the list pattern when addresses are given. The
// list is read once unless the read count has been set explicitly.
func (o *runOptions) applyAddresses(readsSet bool) error {
	addrs, err := parseAddresses(o.addrs)
	if err != nil {
		return err
	}

	o.addresses = addrs
	if len(addrs) == 0 {
		return nil
	}

	o.pattern = memaccessagent.List.String()
	if !readsSet {
		o.reads = len(addrs)
	}

	return nil
}

// parseAddresses parses byte addresses given in decimal, hex (0x) or octal
// (0o) notation.
func parseAddresses(list []string) ([]uint64, error) {
	addrs := make([]uint64, 0, len(list))

	for _, s := range list {
		a, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing address %q", s)
		}

		addrs = append(addrs, a)
	}

	return addrs, nil
}

// mergeConfig takes the flag value of every setting whose flag has been set
// and the environment value of the others.
func mergeConfig(env, flags config, changed func(name string) bool) config {
	c := env

	if changed("variant") {
		c.Variant = flags.Variant
	}

	if changed("latency") {
		c.Latency = flags.Latency
	}

	if changed("chip-selects") {
		c.ChipSelects = flags.ChipSelects
	}

	if changed("freq-mhz") {
		c.FreqMHz = flags.FreqMHz
	}

	if changed("trace-db") {
		c.TraceDB = flags.TraceDB
	}

	if changed("monitor-port") {
		c.MonitorPort = flags.MonitorPort
	}

	return c
}

type simulation struct {
	engine   *timing.SerialEngine
	devices  []*device.Device
	ctrl     *hyperbus.Comp
	agent    *memaccessagent.MemAccessAgent
	latency  *tracing.LatencyTracer
	traceDB  string
	recorder datarecording.DataRecorder
	dbTracer *tracing.DBTracer
	traces   []datarecording.TableSize
	events   uint64
	monitor  *monitoring.Monitor
	progress *monitoring.Progress
}

func buildSimulation(o runOptions) (*simulation, error) {
	useIDs := id.UseSequentialGenerator
	if o.parallelIDs {
		useIDs = id.UseParallelGenerator
	}

	if err := useIDs(); err != nil {
		return nil, err
	}

	variant, err := hyperbus.ParseVariant(o.Variant)
	if err != nil {
		return nil, err
	}

	pattern, err := memaccessagent.ParsePattern(o.pattern)
	if err != nil {
		return nil, err
	}

	latency := o.Latency
	if latency == 0 {
		latency = variant.DefaultLatency
	}

	if o.ChipSelects < 1 || o.ChipSelects > 32 {
		return nil, errors.Errorf("chip selects must be in [1, 32], got %d",
			o.ChipSelects)
	}

	chipBytes := uint64(hyperbus.WordsPerChip * 4)
	size := uint64(o.ChipSelects) * chipBytes

	if o.maxAddr > size {
		return nil, errors.Errorf(
			"max address %#x beyond the %d MiB of %d chip selects",
			o.maxAddr, size>>20, o.ChipSelects)
	}

	freq := timing.Freq(o.FreqMHz) * timing.MHz

	s := &simulation{engine: timing.NewSerialEngine()}

	countEvents := hooking.HookFunc(func(ctx hooking.HookCtx) {
		if ctx.Pos == timing.HookPosAfterEvent {
			s.events++
		}
	})
	s.engine.AcceptHook(&countEvents)

	if o.logEvents {
		s.engine.AcceptHook(timing.NewEventLogger(log.New(os.Stdout, "", 0)).
			WithClock(freq))
	}

	reference := mem.NewStorage(size)
	if err := fillReference(reference, o); err != nil {
		return nil, err
	}

	devs := make([]hyperbus.Device, 0, o.ChipSelects)
	for i := 0; i < o.ChipSelects; i++ {
		dev := device.MakeBuilder().
			WithLatency(latency).
			WithChipSelect(i).
			WithCapacity(chipBytes).
			Build(fmt.Sprintf("Device[%d]", i))

		if err := copyChip(reference, dev.Storage(), i, o.maxAddr); err != nil {
			return nil, err
		}

		s.devices = append(s.devices, dev)
		devs = append(devs, dev)
	}

	s.ctrl = hyperbus.MakeBuilder().
		WithEngine(s.engine).
		WithFreq(freq).
		WithVariant(variant).
		WithLatency(latency).
		WithChipSelects(o.ChipSelects).
		WithDevices(devs...).
		WithStallLimit(o.stallLimit).
		Build("Ctrl")

	agentBuilder := memaccessagent.MakeBuilder().
		WithEngine(s.engine).
		WithFreq(freq).
		WithMaxAddress(o.maxAddr).
		WithStartAddress(o.startAddr).
		WithReadLeft(o.reads).
		WithPattern(pattern).
		WithSeed(o.seed).
		WithReference(reference).
		WithLowModule(s.ctrl.GetPortByName("Top"))
	if len(o.addresses) > 0 {
		agentBuilder = agentBuilder.WithAddresses(o.addresses...)
	}

	s.agent = agentBuilder.Build("Agent")

	conn := modeling.MakeDirectConnectionBuilder().
		WithEngine(s.engine).
		WithFreq(freq).
		Build("Conn")
	conn.PlugIn(s.agent.GetPortByName("Mem"))
	conn.PlugIn(s.ctrl.GetPortByName("Top"))

	if o.logMsgs {
		logger := modeling.NewPortMsgLogger(log.New(os.Stdout, "", 0), s.engine)
		s.ctrl.GetPortByName("Top").AcceptHook(logger)
		s.ctrl.GetPortByName("Control").AcceptHook(logger)
	}

	if err := s.attachTracers(o); err != nil {
		return nil, err
	}

	s.attachMonitor(o)

	return s, nil
}

func isRead(t tracing.Task) bool {
	return t.Kind == tracing.KindReqIn && t.What == "*mem.ReadReq"
}

func (s *simulation) attachTracers(o runOptions) error {
	s.latency = tracing.NewLatencyTracer(s.engine, isRead)
	tracing.CollectTrace(s.ctrl, s.latency)

	if o.TraceDB == "" {
		return nil
	}

	recorder, err := datarecording.Open(o.TraceDB)
	if err != nil {
		return err
	}

	s.traceDB = o.TraceDB
	s.recorder = recorder
	s.dbTracer = tracing.NewDBTracer(s.engine, recorder)
	tracing.CollectTrace(s.ctrl, s.dbTracer)

	return nil
}

func (s *simulation) attachMonitor(o runOptions) {
	if !o.monitor {
		return
	}

	s.monitor = monitoring.NewMonitor().
		WithPortNumber(o.MonitorPort).
		WithBrowser(o.openBrowser)
	s.monitor.RegisterEngine(s.engine)
	s.monitor.RegisterComponent(s.ctrl)
	s.monitor.RegisterComponent(s.agent)

	s.progress = s.monitor.NewProgress("Reads", uint64(o.reads))
	tracing.CollectTrace(s.ctrl, &progressTracer{progress: s.progress})

	s.monitor.StartServer()
}

func (s *simulation) run() error {
	s.agent.TickLater()

	if err := s.engine.Run(); err != nil {
		return errors.Wrap(err, "running simulation")
	}

	if s.progress != nil {
		s.monitor.RemoveProgress(s.progress)
	}

	if err := s.closeTrace(); err != nil {
		return err
	}

	if !s.agent.Done() {
		return errors.Errorf("%d reads not sent and %d not answered",
			s.agent.ReadLeft, len(s.agent.PendingReadReq))
	}

	return nil
}

// closeTrace writes the trace database out and reads back its row counts.
func (s *simulation) closeTrace() error {
	if s.recorder == nil {
		return nil
	}

	s.dbTracer.Terminate()

	if err := s.recorder.Close(); err != nil {
		return errors.Wrap(err, "closing trace database")
	}

	reader := datarecording.NewSQLiteReader(s.traceDB)
	if err := reader.Init(); err != nil {
		return err
	}
	defer reader.Close()

	traces, err := reader.Summary(context.Background())
	if err != nil {
		return errors.Wrap(err, "reading trace database back")
	}

	s.traces = traces

	return nil
}

func ns(t timing.VTimeInSec) float64 {
	return float64(t) * 1e9
}

func (s *simulation) report(w io.Writer) {
	stats := s.ctrl.Stats()
	reads := s.latency.Overall()
	fast := s.latency.Step("fast_path")
	restart := s.latency.Step("full_restart")

	fmt.Fprintf(w, "variant:          %s\n", s.ctrl.Controller().Variant())
	fmt.Fprintf(w, "latency:          %d\n", s.ctrl.Controller().Latency())
	fmt.Fprintf(w, "events:           %d\n", s.events)
	fmt.Fprintf(w, "cycles:           %d\n", stats.Cycles)
	fmt.Fprintf(w, "acknowledges:     %d\n", stats.Acks)
	fmt.Fprintf(w, "fresh starts:     %d\n", stats.FreshStarts)
	fmt.Fprintf(w, "restarts:         %d\n", stats.Restarts)
	fmt.Fprintf(w, "continuations:    %d\n", stats.Continuations)
	fmt.Fprintf(w, "windows closed:   %d\n", stats.WindowsClosed)
	fmt.Fprintf(w, "fast path reads:  %d, avg %.2f ns\n",
		fast.Count, ns(fast.Average()))
	fmt.Fprintf(w, "full restarts:    %d, avg %.2f ns\n",
		restart.Count, ns(restart.Average()))
	fmt.Fprintf(w, "mismatches:       %d\n", s.agent.Mismatches)
	fmt.Fprintf(w, "avg ctrl latency: %.2f ns (min %.2f, max %.2f)\n",
		ns(reads.Average()), ns(reads.Min), ns(reads.Max))
	fmt.Fprintf(w, "ctrl busy time:   %.2f ns\n", ns(reads.Total))
	fmt.Fprintf(w, "avg read latency: %.2f ns\n", ns(s.agent.AverageLatency()))

	for _, t := range s.traces {
		fmt.Fprintf(w, "trace %-11s %d rows\n", t.Table+":", t.Rows)
	}
}

// fillReference writes the memory content all the devices will hold: the
// image if one is given, random bytes below the max address otherwise.
func fillReference(s *mem.Storage, o runOptions) error {
	if o.image != "" {
		n, err := mem.LoadImageFile(s, o.image, o.imageOffset)
		if err != nil {
			return err
		}

		if n == 0 {
			return errors.Errorf("image %s is empty", o.image)
		}

		head, err := s.Read(o.imageOffset, uint64(min(n, 4)))
		if err != nil {
			return errors.Wrap(err, "reading image back")
		}

		log.Printf("loaded %d bytes from %s at %#x, first word %#08x",
			n, o.image, o.imageOffset, mem.ImageWords(head)[0])

		return nil
	}

	data := make([]byte, o.maxAddr)
	rand.New(rand.NewSource(o.seed)).Read(data)

	return errors.Wrap(s.Write(0, data), "filling memory")
}

// copyChip copies the part of the reference below limit that the given chip
// select decodes into the storage of its device.
func copyChip(reference, dst *mem.Storage, chip int, limit uint64) error {
	chipBytes := dst.Capacity()
	base := uint64(chip) * chipBytes

	if limit <= base {
		return nil
	}

	n := limit - base
	if n > chipBytes {
		n = chipBytes
	}

	data, err := reference.Read(base, n)
	if err != nil {
		return errors.Wrapf(err, "reading content of chip %d", chip)
	}

	return errors.Wrapf(dst.Write(0, data), "writing content of chip %d", chip)
}

// progressTracer counts the reads the controller takes and completes. Reads
// are recognized at start, so only their IDs are kept for the end.
type progressTracer struct {
	progress *monitoring.Progress
	reads    map[string]bool
}

func (t *progressTracer) StartTask(task tracing.Task) {
	if !isRead(task) {
		return
	}

	if t.reads == nil {
		t.reads = make(map[string]bool)
	}

	t.reads[task.ID] = true
	t.progress.Begin(1)
}

func (t *progressTracer) StepTask(_ tracing.Task) {}

func (t *progressTracer) EndTask(task tracing.Task) {
	if !t.reads[task.ID] {
		return
	}

	delete(t.reads, task.ID)
	t.progress.Done(1)
}
