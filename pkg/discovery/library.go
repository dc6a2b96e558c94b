package discovery

import (
	"context"
	"errors"

	"github.com/logflow/pmdiscover/pkg/config"
	jerrors "github.com/logflow/pmdiscover/pkg/errors"
	"github.com/logflow/pmdiscover/pkg/eventlog"
)

// Miner discovers a process tree from an event log.
type Miner interface {
	Discover(ctx context.Context, log *eventlog.Log) (*Tree, error)
}

// NetConverter is the conversion route every library must support:
// tree -> workflow net -> BPMN.
type NetConverter interface {
	TreeToPetriNet(tree *Tree) (*PetriNet, Marking, Marking, error)
	PetriNetToBPMN(net *PetriNet, initial, final Marking) (*BPMN, error)
}

// DirectConverter is optional. Libraries that implement it convert trees
// to BPMN without the Petri net detour.
type DirectConverter interface {
	TreeToBPMN(tree *Tree) (*BPMN, error)
}

// Library is a process discovery library.
type Library interface {
	Miner
	NetConverter
}

// Inductive is the built-in library. It supports both conversion routes.
type Inductive struct {
	InductiveMiner
}

func (Inductive) TreeToPetriNet(tree *Tree) (*PetriNet, Marking, Marking, error) {
	return TreeToPetriNet(tree)
}

func (Inductive) PetriNetToBPMN(net *PetriNet, initial, final Marking) (*BPMN, error) {
	return PetriNetToBPMN(net, initial, final)
}

func (Inductive) TreeToBPMN(tree *Tree) (*BPMN, error) {
	return TreeToBPMN(tree)
}

type netOnly struct {
	Library
}

// WithoutDirect hides any direct converter lib provides.
func WithoutDirect(lib Library) Library {
	return netOnly{Library: lib}
}

// Path names the route a Converter takes.
type Path string

const (
	PathDirect   Path = "direct"
	PathPetriNet Path = "petri-net"
)

// Converter turns process trees into BPMN graphs along a route fixed at construction.
type Converter struct {
	lib    Library
	direct DirectConverter
	path   Path
}

// NewConverter checks lib for a direct converter once. mode is one of the
// config.Conversion* values; an empty mode behaves like auto.
func NewConverter(lib Library, mode string) (*Converter, error) {
	if lib == nil {
		return nil, jerrors.New(jerrors.CodeInvalidConfig, "discovery library is nil")
	}
	direct, hasDirect := lib.(DirectConverter)

	c := &Converter{lib: lib}
	switch mode {
	case config.ConversionAuto, "":
		if hasDirect {
			c.direct, c.path = direct, PathDirect
		} else {
			c.path = PathPetriNet
		}
	case config.ConversionDirect:
		if !hasDirect {
			return nil, jerrors.New(jerrors.CodeInvalidConfig,
				"direct conversion requested but the discovery library has no tree-to-BPMN converter").
				WithContext("param", config.EnvConversionPath)
		}
		c.direct, c.path = direct, PathDirect
	case config.ConversionNet:
		c.path = PathPetriNet
	default:
		return nil, jerrors.InvalidConfig(config.EnvConversionPath, mode,
			errors.New("must be auto, direct or net"))
	}
	return c, nil
}

// Path returns the chosen route.
func (c *Converter) Path() Path {
	return c.path
}

// Convert converts tree to BPMN. Failures carry CodeConversionFailed.
func (c *Converter) Convert(tree *Tree) (*BPMN, error) {
	if c.direct != nil {
		bpmn, err := c.direct.TreeToBPMN(tree)
		if err != nil {
			return nil, jerrors.Wrap(err, jerrors.CodeConversionFailed, "tree to BPMN conversion failed")
		}
		return bpmn, nil
	}

	net, initial, final, err := c.lib.TreeToPetriNet(tree)
	if err != nil {
		return nil, jerrors.Wrap(err, jerrors.CodeConversionFailed, "tree to Petri net conversion failed")
	}
	bpmn, err := c.lib.PetriNetToBPMN(net, initial, final)
	if err != nil {
		return nil, jerrors.Wrap(err, jerrors.CodeConversionFailed, "Petri net to BPMN conversion failed")
	}
	return bpmn, nil
}

// Model is the outcome of one discovery.
type Model struct {
	Tree *Tree
	BPMN *BPMN
	Path Path
}

// Discoverer mines a log and converts the tree to BPMN.
type Discoverer struct {
	miner Miner
	conv  *Converter
}

// NewDiscoverer builds a Discoverer over lib, resolving the conversion route once.
func NewDiscoverer(lib Library, mode string) (*Discoverer, error) {
	conv, err := NewConverter(lib, mode)
	if err != nil {
		return nil, err
	}
	return &Discoverer{miner: lib, conv: conv}, nil
}

// Path returns the conversion route in use.
func (d *Discoverer) Path() Path {
	return d.conv.Path()
}

// Discover produces a process model from log.
func (d *Discoverer) Discover(ctx context.Context, log *eventlog.Log) (*Model, error) {
	if log.Empty() {
		return nil, jerrors.New(jerrors.CodeDiscoveryFailed, "event log is empty")
	}

	tree, err := d.miner.Discover(ctx, log)
	if err != nil {
		if ctx.Err() != nil {
			return nil, jerrors.Wrap(err, jerrors.CodeCanceled, "discovery canceled")
		}
		return nil, jerrors.Wrap(err, jerrors.CodeDiscoveryFailed, "process tree discovery failed")
	}
	if tree == nil {
		return nil, jerrors.New(jerrors.CodeDiscoveryFailed, "discovery returned no process tree")
	}

	bpmn, err := d.conv.Convert(tree)
	if err != nil {
		return nil, err
	}
	return &Model{Tree: tree, BPMN: bpmn, Path: d.conv.Path()}, nil
}
