package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logflow/pmdiscover/pkg/config"
	jerrors "github.com/logflow/pmdiscover/pkg/errors"
	"github.com/logflow/pmdiscover/pkg/eventlog"
)

func seqs(traces ...string) *eventlog.Log {
	out := make([][]string, len(traces))
	for i, t := range traces {
		acts := make([]string, 0, len(t))
		for _, r := range t {
			acts = append(acts, string(r))
		}
		out[i] = acts
	}
	return eventlog.FromSequences(out...)
}

func mine(t *testing.T, log *eventlog.Log) *Tree {
	t.Helper()
	tree, err := InductiveMiner{}.Discover(context.Background(), log)
	require.NoError(t, err)
	return tree
}

func TestInductiveMiner(t *testing.T) {
	tests := []struct {
		name string
		log  *eventlog.Log
		want string
	}{
		{"single activity", seqs("a", "a"), "'a'"},
		{"sequence", seqs("abc", "abc"), "->( 'a', 'b', 'c' )"},
		{"exclusive choice", seqs("abd", "acd"), "->( 'a', X( 'b', 'c' ), 'd' )"},
		{"parallel", seqs("abcd", "acbd"), "->( 'a', +( 'b', 'c' ), 'd' )"},
		{"loop", seqs("ab", "abcb", "abcbcb"), "->( 'a', *( 'b', 'c' ) )"},
		{"repeated single activity", seqs("a", "aa"), "*( 'a', tau )"},
		{"skippable activity", seqs("ac", "abc"), "->( 'a', X( tau, 'b' ), 'c' )"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mine(t, tt.log).String())
		})
	}
}

func TestInductiveMinerKeepsEveryActivity(t *testing.T) {
	log := seqs("abcde", "aedcb", "bbbca", "eda", "cab")
	tree := mine(t, log)
	assert.Equal(t, log.Activities(), tree.Activities())
}

func TestInductiveMinerCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := InductiveMiner{}.Discover(ctx, seqs("ab"))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestTreeToPetriNet(t *testing.T) {
	tree := Node(OpSequence, Leaf("a"), Node(OpXor, Leaf("b"), Tau()), Leaf("c"))

	net, initial, final, err := TreeToPetriNet(tree)
	require.NoError(t, err)
	assert.Len(t, initial, 1)
	assert.Len(t, final, 1)
	assert.Equal(t, []string{"a", "b", "c"}, net.VisibleLabels())
	assert.Len(t, net.Transitions, 4)
}

func TestTreeToPetriNetRejectsShortLoop(t *testing.T) {
	_, _, _, err := TreeToPetriNet(Node(OpLoop, Leaf("a")))
	assert.Error(t, err)
}

var conversionTrees = map[string]*Tree{
	"tau":        Tau(),
	"leaf":       Leaf("a"),
	"sequence":   Node(OpSequence, Leaf("a"), Leaf("b")),
	"choice":     Node(OpSequence, Leaf("a"), Node(OpXor, Leaf("b"), Leaf("c"), Tau()), Leaf("d")),
	"parallel":   Node(OpSequence, Leaf("a"), Node(OpParallel, Leaf("b"), Leaf("c")), Leaf("d")),
	"loop":       Node(OpSequence, Leaf("a"), Node(OpLoop, Leaf("b"), Leaf("c"))),
	"tau loop":   Node(OpLoop, Leaf("a"), Tau()),
	"flower":     Node(OpLoop, Tau(), Node(OpXor, Leaf("a"), Leaf("b"))),
	"nested":     Node(OpParallel, Node(OpLoop, Leaf("a"), Leaf("b")), Node(OpXor, Leaf("c"), Node(OpSequence, Leaf("d"), Leaf("e")))),
	"skip block": Node(OpXor, Tau(), Node(OpParallel, Leaf("a"), Leaf("b"))),
}

func TestConversionPathsAgree(t *testing.T) {
	for name, tree := range conversionTrees {
		t.Run(name, func(t *testing.T) {
			direct, err := TreeToBPMN(tree)
			require.NoError(t, err)

			net, initial, final, err := TreeToPetriNet(tree)
			require.NoError(t, err)
			viaNet, err := PetriNetToBPMN(net, initial, final)
			require.NoError(t, err)

			require.NoError(t, direct.Validate())
			require.NoError(t, viaNet.Validate())
			assert.Equal(t, direct.Tasks(), viaNet.Tasks())
			assert.Equal(t, 1, direct.Count(StartEvent))
			assert.Equal(t, 1, viaNet.Count(EndEvent))
		})
	}
}

func TestTreeToBPMNGateways(t *testing.T) {
	bpmn, err := TreeToBPMN(conversionTrees["parallel"])
	require.NoError(t, err)

	assert.Equal(t, 2, bpmn.Count(ParallelGateway))
	assert.Equal(t, 0, bpmn.Count(ExclusiveGateway))

	var dirs []GatewayDirection
	for _, n := range bpmn.Nodes() {
		if n.Kind.IsGateway() {
			dirs = append(dirs, bpmn.Direction(n.ID))
		}
	}
	assert.ElementsMatch(t, []GatewayDirection{Diverging, Converging}, dirs)
}

func TestBPMNValidate(t *testing.T) {
	b := NewBPMN()
	start := b.AddNode(StartEvent, "start")
	task := b.AddNode(Task, "a")
	b.AddNode(EndEvent, "end")
	b.AddFlow(start.ID, task.ID)

	err := b.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot reach the end event")
}

// fakeLibrary records which conversion route was taken.
type fakeLibrary struct {
	tree  *Tree
	calls []string
}

func (f *fakeLibrary) Discover(context.Context, *eventlog.Log) (*Tree, error) {
	f.calls = append(f.calls, "discover")
	return f.tree, nil
}

func (f *fakeLibrary) TreeToPetriNet(tree *Tree) (*PetriNet, Marking, Marking, error) {
	f.calls = append(f.calls, "tree-to-net")
	return TreeToPetriNet(tree)
}

func (f *fakeLibrary) PetriNetToBPMN(net *PetriNet, initial, final Marking) (*BPMN, error) {
	f.calls = append(f.calls, "net-to-bpmn")
	return PetriNetToBPMN(net, initial, final)
}

type fakeDirectLibrary struct {
	fakeLibrary
}

func (f *fakeDirectLibrary) TreeToBPMN(tree *Tree) (*BPMN, error) {
	f.calls = append(f.calls, "tree-to-bpmn")
	return TreeToBPMN(tree)
}

func TestDiscovererUsesDirectConverterWhenAvailable(t *testing.T) {
	lib := &fakeDirectLibrary{fakeLibrary{tree: Node(OpSequence, Leaf("a"), Leaf("b"))}}

	d, err := NewDiscoverer(lib, config.ConversionAuto)
	require.NoError(t, err)
	assert.Equal(t, PathDirect, d.Path())

	model, err := d.Discover(context.Background(), seqs("ab"))
	require.NoError(t, err)
	assert.Equal(t, PathDirect, model.Path)
	assert.Equal(t, []string{"discover", "tree-to-bpmn"}, lib.calls)
}

func TestDiscovererFallsBackToPetriNet(t *testing.T) {
	lib := &fakeLibrary{tree: Node(OpSequence, Leaf("a"), Leaf("b"))}

	d, err := NewDiscoverer(lib, config.ConversionAuto)
	require.NoError(t, err)
	assert.Equal(t, PathPetriNet, d.Path())

	model, err := d.Discover(context.Background(), seqs("ab"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, model.BPMN.Tasks())
	assert.Equal(t, []string{"discover", "tree-to-net", "net-to-bpmn"}, lib.calls)
}

func TestNewConverterModes(t *testing.T) {
	tests := []struct {
		name    string
		lib     Library
		mode    string
		want    Path
		wantErr jerrors.Code
	}{
		{"auto with direct", Inductive{}, config.ConversionAuto, PathDirect, ""},
		{"empty mode is auto", Inductive{}, "", PathDirect, ""},
		{"forced net", Inductive{}, config.ConversionNet, PathPetriNet, ""},
		{"hidden direct", WithoutDirect(Inductive{}), config.ConversionAuto, PathPetriNet, ""},
		{"direct required but absent", WithoutDirect(Inductive{}), config.ConversionDirect, "", jerrors.CodeInvalidConfig},
		{"unknown mode", Inductive{}, "sideways", "", jerrors.CodeInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewConverter(tt.lib, tt.mode)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, jerrors.IsCode(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Path())
		})
	}
}

type failingMiner struct {
	fakeLibrary
	err error
}

func (f *failingMiner) Discover(context.Context, *eventlog.Log) (*Tree, error) {
	return nil, f.err
}

func TestDiscovererErrors(t *testing.T) {
	d, err := NewDiscoverer(&failingMiner{err: errors.New("boom")}, config.ConversionNet)
	require.NoError(t, err)

	_, err = d.Discover(context.Background(), seqs("ab"))
	assert.True(t, jerrors.IsCode(err, jerrors.CodeDiscoveryFailed))

	_, err = d.Discover(context.Background(), eventlog.FromEvents(nil))
	assert.True(t, jerrors.IsCode(err, jerrors.CodeDiscoveryFailed))

	bad := &fakeLibrary{tree: Node(OpLoop, Leaf("a"))}
	d, err = NewDiscoverer(bad, config.ConversionNet)
	require.NoError(t, err)
	_, err = d.Discover(context.Background(), seqs("a"))
	assert.True(t, jerrors.IsCode(err, jerrors.CodeConversionFailed))
}

func TestDiscoverEndToEnd(t *testing.T) {
	log := seqs("abcd", "acbd", "aed", "abcd")
	for _, mode := range []string{config.ConversionDirect, config.ConversionNet} {
		d, err := NewDiscoverer(Inductive{}, mode)
		require.NoError(t, err)

		model, err := d.Discover(context.Background(), log)
		require.NoError(t, err, mode)
		require.NoError(t, model.BPMN.Validate())
		assert.Equal(t, []string{"a", "b", "c", "d", "e"}, model.BPMN.Tasks(), mode)
	}
}

func TestBuildReport(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	at := func(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }
	log := eventlog.FromEvents([]eventlog.Event{
		{CaseID: "1", Activity: ActivityQuoteRequest, Timestamp: at(0)},
		{CaseID: "1", Activity: "quote.sent", Timestamp: at(10)},
		{CaseID: "1", Activity: ActivityInvoiceReceived, Timestamp: at(70)},
		{CaseID: "2", Activity: ActivityQuoteRequest, Timestamp: at(0)},
		{CaseID: "2", Activity: "quote.sent", Timestamp: at(30)},
		{CaseID: "3", Activity: ActivityQuoteRequest, Timestamp: at(0)},
		{CaseID: "3", Activity: "quote.sent", Timestamp: at(50)},
	})
	now := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	report := BuildReport(log, DefaultReportParams(), now)
	require.Len(t, report.Edges, 2)
	assert.Equal(t, ReportEdge{From: ActivityQuoteRequest, To: "quote.sent", Freq: 3, P50Min: 30}, report.Edges[0])
	assert.Equal(t, ReportEdge{From: "quote.sent", To: ActivityInvoiceReceived, Freq: 1, P50Min: 60}, report.Edges[1])
	assert.Equal(t, now, report.Meta.GeneratedAt)
	assert.False(t, report.Meta.Filtered)

	filtered := BuildReport(log, ReportParams{SinceDays: 30, MinFreq: 1, Limit: 10, RequireQuoteAndInvoice: true}, now)
	require.Len(t, filtered.Edges, 2)
	assert.Equal(t, int64(1), filtered.Edges[0].Freq)
	assert.True(t, filtered.Meta.Filtered)

	frequent := BuildReport(log, ReportParams{MinFreq: 2, Limit: 1}, now)
	require.Len(t, frequent.Edges, 1)
	assert.Equal(t, int64(3), frequent.Edges[0].Freq)
}

func TestReportParamsNormalize(t *testing.T) {
	p := ReportParams{SinceDays: 0, MinFreq: -4, Limit: 5000}.Normalize()
	assert.Equal(t, ReportParams{SinceDays: 1, MinFreq: 1, Limit: 2000}, p)

	p = ReportParams{SinceDays: 99999, MinFreq: 3, Limit: 0}.Normalize()
	assert.Equal(t, ReportParams{SinceDays: 3650, MinFreq: 3, Limit: 1}, p)
}
