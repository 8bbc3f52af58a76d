package monitoring

import (
	"bytes"
	"cmp"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"runtime/pprof"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/hyperbus/sim/modeling"
)

type statusError struct {
	code int
	err  error
}

func (e *statusError) Error() string {
	return e.err.Error()
}

func withStatus(code int, err error) error {
	return &statusError{code: code, err: err}
}

// apiHandler is an HTTP handler that reports failures as errors. Errors
// without a status are internal errors.
type apiHandler func(w http.ResponseWriter, r *http.Request) error

func (h apiHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := h(w, r)
	if err == nil {
		return
	}

	code := http.StatusInternalServerError

	var se *statusError
	if errors.As(err, &se) {
		code = se.code
	}

	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encoding response")
	}

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(data)

	return err
}

func (m *Monitor) pause(http.ResponseWriter, *http.Request) error {
	m.engine.Pause()
	return nil
}

func (m *Monitor) resume(http.ResponseWriter, *http.Request) error {
	m.engine.Continue()
	return nil
}

type nowRsp struct {
	Now float64 `json:"now"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) error {
	return writeJSON(w, nowRsp{Now: float64(m.engine.Now())})
}

func (m *Monitor) run(http.ResponseWriter, *http.Request) error {
	go func() {
		if err := m.engine.Run(); err != nil {
			log.Printf("monitor: simulation failed: %v", err)
		}
	}()

	return nil
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) error {
	names := make([]string, 0, len(m.components))
	for _, c := range m.components {
		names = append(names, c.Name())
	}

	return writeJSON(w, names)
}

type tickable interface {
	TickLater()
}

func (m *Monitor) tick(_ http.ResponseWriter, r *http.Request) error {
	c, err := m.component(mux.Vars(r)["name"])
	if err != nil {
		return err
	}

	t, ok := c.(tickable)
	if !ok {
		return withStatus(http.StatusMethodNotAllowed,
			errors.Errorf("%s does not tick", c.Name()))
	}

	t.TickLater()

	return nil
}

func serializeComponent(
	w http.ResponseWriter,
	c modeling.Component,
	path []string,
) error {
	s := goseth.NewSerializer()
	s.SetRoot(c)
	s.SetMaxDepth(1)

	if len(path) > 0 {
		if err := s.SetEntryPoint(path); err != nil {
			return withStatus(http.StatusNotFound, err)
		}
	}

	return s.Serialize(w)
}

func (m *Monitor) componentDetails(w http.ResponseWriter, r *http.Request) error {
	c, err := m.component(mux.Vars(r)["name"])
	if err != nil {
		return err
	}

	return serializeComponent(w, c, nil)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) fieldValue(w http.ResponseWriter, r *http.Request) error {
	req := fieldReq{}
	if err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req); err != nil {
		return withStatus(http.StatusBadRequest, err)
	}

	c, err := m.component(req.CompName)
	if err != nil {
		return err
	}

	return serializeComponent(w, c, strings.Split(req.FieldName, "."))
}

type registerRsp struct {
	Component string `json:"component"`
	Offset    uint64 `json:"offset"`
	Value     uint32 `json:"value"`
}

type registerWriteReq struct {
	Value uint32 `json:"value"`
}

func (m *Monitor) registerFile(r *http.Request) (RegisterFile, uint64, error) {
	vars := mux.Vars(r)

	offset, err := strconv.ParseUint(vars["offset"], 0, 64)
	if err != nil {
		return nil, 0, withStatus(http.StatusBadRequest,
			errors.Wrap(err, "parsing offset"))
	}

	c, err := m.component(vars["name"])
	if err != nil {
		return nil, 0, err
	}

	regs, ok := c.(RegisterFile)
	if !ok {
		return nil, 0, withStatus(http.StatusMethodNotAllowed,
			errors.Errorf("%s has no registers", c.Name()))
	}

	return regs, offset, nil
}

func (m *Monitor) readRegister(w http.ResponseWriter, r *http.Request) error {
	regs, offset, err := m.registerFile(r)
	if err != nil {
		return err
	}

	value, err := regs.ReadRegister(offset)
	if err != nil {
		return withStatus(http.StatusNotFound, err)
	}

	return writeJSON(w, registerRsp{
		Component: mux.Vars(r)["name"],
		Offset:    offset,
		Value:     value,
	})
}

func (m *Monitor) writeRegister(w http.ResponseWriter, r *http.Request) error {
	regs, offset, err := m.registerFile(r)
	if err != nil {
		return err
	}

	req := registerWriteReq{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return withStatus(http.StatusBadRequest,
			errors.Wrap(err, "decoding register write"))
	}

	if err := regs.WriteRegister(offset, req.Value); err != nil {
		return withStatus(http.StatusBadRequest, err)
	}

	return writeJSON(w, registerRsp{
		Component: mux.Vars(r)["name"],
		Offset:    offset,
		Value:     req.Value,
	})
}

type bufferLevel struct {
	Buffer string `json:"buffer"`
	Level  int    `json:"level"`
	Cap    int    `json:"cap"`
}

func (m *Monitor) bufferLevels(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()

	by := q.Get("sort")
	if by == "" {
		by = "percent"
	}

	if by != "level" && by != "percent" {
		return withStatus(http.StatusBadRequest, errors.Errorf(
			"cannot sort buffers by %q, use level or percent", by))
	}

	limit, err := nonNegative(q.Get("limit"), "limit")
	if err != nil {
		return err
	}

	offset, err := nonNegative(q.Get("offset"), "offset")
	if err != nil {
		return err
	}

	selected := m.sortAndSelectBuffers(by, limit, offset)

	levels := make([]bufferLevel, 0, len(selected))
	for _, b := range selected {
		levels = append(levels, bufferLevel{
			Buffer: b.Name(),
			Level:  b.Size(),
			Cap:    b.Capacity(),
		})
	}

	return writeJSON(w, levels)
}

func nonNegative(s, name string) (int, error) {
	if s == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(s)
	if err == nil && n < 0 {
		err = errors.New("must not be negative")
	}

	if err != nil {
		return 0, withStatus(http.StatusBadRequest,
			errors.Wrapf(err, "parsing %s", name))
	}

	return n, nil
}

func fillRatio(b modeling.Buffer) float64 {
	return float64(b.Size()) / float64(b.Capacity())
}

// sortAndSelectBuffers orders the buffers from the fullest, by level or by
// fill ratio with the other as the tie breaker, and returns the window
// [offset, offset+limit). A zero limit selects the rest of the buffers.
func (m *Monitor) sortAndSelectBuffers(
	by string,
	limit, offset int,
) []modeling.Buffer {
	byLevel := func(a, b modeling.Buffer) int {
		return cmp.Compare(b.Size(), a.Size())
	}
	byRatio := func(a, b modeling.Buffer) int {
		return cmp.Compare(fillRatio(b), fillRatio(a))
	}

	first, second := byRatio, byLevel
	if by == "level" {
		first, second = byLevel, byRatio
	}

	sorted := slices.Clone(m.buffers)
	slices.SortStableFunc(sorted, func(a, b modeling.Buffer) int {
		return cmp.Or(first(a, b), second(a, b))
	})

	offset = min(offset, len(sorted))

	end := len(sorted)
	if limit > 0 {
		end = min(end, offset+limit)
	}

	return sorted[offset:end]
}

func (m *Monitor) listProgress(w http.ResponseWriter, _ *http.Request) error {
	return writeJSON(w, m.progressReports())
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) resources(w http.ResponseWriter, _ *http.Request) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return errors.Wrap(err, "inspecting process")
	}

	cpu, err := proc.CPUPercent()
	if err != nil {
		return errors.Wrap(err, "reading CPU usage")
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return errors.Wrap(err, "reading memory usage")
	}

	return writeJSON(w, resourceRsp{CPUPercent: cpu, MemorySize: memInfo.RSS})
}

// profile samples the CPU for the number of seconds in the query, one by
// default, and returns the parsed profile.
func (m *Monitor) profile(w http.ResponseWriter, r *http.Request) error {
	seconds, err := nonNegative(r.URL.Query().Get("seconds"), "seconds")
	if err != nil {
		return err
	}

	seconds = max(seconds, 1)

	buf := new(bytes.Buffer)
	if err := pprof.StartCPUProfile(buf); err != nil {
		return withStatus(http.StatusConflict, err)
	}

	time.Sleep(time.Duration(seconds) * time.Second)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		return errors.Wrap(err, "parsing profile")
	}

	return writeJSON(w, prof)
}
