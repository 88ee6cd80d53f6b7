package worker

import (
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/workerdom/coordinator/internal/infrastructure/logging"
	"github.com/workerdom/coordinator/internal/protocol"
)

// GojaWorker runs author JavaScript in an in-process goja VM. The VM and
// the virtual document are confined to the worker's own goroutine; the
// coordinator talks to it only through channels.
type GojaWorker struct {
	cfg     Config
	log     *logging.Logger
	program string

	vm        *goja.Runtime
	vmMu      sync.Mutex // guards vm against Terminate from another goroutine
	doc       *vdoc
	proxies   map[*vnode]*goja.Object
	listeners map[string]map[string]goja.Callable

	in   chan protocol.ToWorker
	out  chan protocol.FromWorker
	quit chan struct{}
	once sync.Once
}

// NewGoja validates the program size and starts a worker goroutine. The VM
// itself is not created until the init message arrives.
func NewGoja(program string, cfg Config, log *logging.Logger) (*GojaWorker, error) {
	if err := CheckProgramSize(program, cfg.MaxProgramSize); err != nil {
		return nil, err
	}
	if cfg.ExecTimeout <= 0 {
		cfg.ExecTimeout = DefaultConfig().ExecTimeout
	}
	if log == nil {
		log = logging.NewNop()
	}

	w := &GojaWorker{
		cfg:       cfg,
		log:       log,
		program:   program,
		proxies:   make(map[*vnode]*goja.Object),
		listeners: make(map[string]map[string]goja.Callable),
		in:        make(chan protocol.ToWorker, 64),
		out:       make(chan protocol.FromWorker, 64),
		quit:      make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Send delivers a coordinator message without blocking. When the inbox is
// full the message is dropped; delivery is at-most-once by contract.
func (w *GojaWorker) Send(msg protocol.ToWorker) error {
	select {
	case <-w.quit:
		return ErrTerminated
	default:
	}
	select {
	case w.in <- msg:
		return nil
	case <-w.quit:
		return ErrTerminated
	default:
		w.log.Warn("worker inbox full, message dropped", zap.String("type", msg.Type))
		return nil
	}
}

// Messages returns the worker's ordered output stream. Closed on
// termination.
func (w *GojaWorker) Messages() <-chan protocol.FromWorker {
	return w.out
}

// Terminate tears the worker down. Idempotent; a running script is
// interrupted.
func (w *GojaWorker) Terminate() {
	w.once.Do(func() {
		close(w.quit)
		w.vmMu.Lock()
		if w.vm != nil {
			w.vm.Interrupt("terminated")
		}
		w.vmMu.Unlock()
	})
}

func (w *GojaWorker) run() {
	defer close(w.out)
	for {
		select {
		case <-w.quit:
			return
		case msg := <-w.in:
			switch msg.Type {
			case protocol.TypeInit:
				if !w.handleInit(msg.Location) {
					w.Terminate()
					return
				}
			case protocol.TypeEvent:
				if msg.Event != nil {
					w.handleEvent(msg.Event)
				}
			}
		}
	}
}

// handleInit builds the VM, runs the author program once and emits the
// initial skeleton.
func (w *GojaWorker) handleInit(location string) bool {
	w.vmMu.Lock()
	w.vm = goja.New()
	w.vmMu.Unlock()
	w.doc = newVDoc()
	w.setupGlobals(location)

	if err := w.withTimeout(func() error {
		_, err := w.vm.RunString(w.program)
		return err
	}); err != nil {
		w.log.Error("author program failed", zap.Error(err))
		return false
	}

	sk := w.doc.skeleton(w.doc.body)
	w.emit(protocol.FromWorker{Type: protocol.TypeInitResult, Skeleton: &sk})
	w.doc.live = true
	return true
}

// handleEvent dispatches a proxied event to its registered listener and
// flushes whatever mutations the handler produced.
func (w *GojaWorker) handleEvent(ev *protocol.Event) {
	byType, ok := w.listeners[ev.Target]
	if !ok {
		return
	}
	cb, ok := byType[ev.Type]
	if !ok {
		return
	}

	arg := w.vm.NewObject()
	arg.Set("type", ev.Type)
	arg.Set("targetId", ev.Target)
	arg.Set("value", ev.Value)
	for k, v := range ev.Properties {
		arg.Set(k, v)
	}

	if err := w.withTimeout(func() error {
		_, err := cb(goja.Undefined(), arg)
		return err
	}); err != nil {
		w.log.Warn("event handler failed",
			zap.String("event", ev.Type),
			zap.Error(err),
		)
	}
	w.flush()
}

// flush emits recorded mutations as one batch.
func (w *GojaWorker) flush() {
	muts := w.doc.takePending()
	if len(muts) == 0 {
		return
	}
	w.emit(protocol.FromWorker{Type: protocol.TypeMutate, Mutations: muts})
}

func (w *GojaWorker) emit(msg protocol.FromWorker) {
	select {
	case w.out <- msg:
	case <-w.quit:
	}
}

// withTimeout interrupts author code that overruns the execution budget.
func (w *GojaWorker) withTimeout(f func() error) error {
	timer := time.AfterFunc(w.cfg.ExecTimeout, func() {
		w.vm.Interrupt("execution timeout exceeded")
	})
	defer timer.Stop()
	defer w.vm.ClearInterrupt()
	return f()
}

// setupGlobals installs the author-facing API and strips dangerous globals.
func (w *GojaWorker) setupGlobals(location string) {
	vm := w.vm

	vm.Set("require", goja.Undefined())
	vm.Set("process", goja.Undefined())
	vm.Set("module", goja.Undefined())
	vm.Set("exports", goja.Undefined())
	vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		return goja.Undefined()
	})
	vm.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		return goja.Undefined()
	})

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error"} {
		console.Set(level, w.makeConsoleFunc(level))
	}
	vm.Set("console", console)

	vm.Set("location", location)

	document := vm.NewObject()
	document.Set("body", w.proxy(w.doc.body))
	document.Set("createElement", func(call goja.FunctionCall) goja.Value {
		tag := call.Argument(0).String()
		return w.proxy(w.doc.createElement(tag))
	})
	document.Set("createTextNode", func(call goja.FunctionCall) goja.Value {
		return w.proxy(w.doc.createText(call.Argument(0).String()))
	})
	document.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		n, ok := w.doc.nodes[call.Argument(0).String()]
		if !ok {
			return goja.Null()
		}
		return w.proxy(n)
	})
	vm.Set("document", document)
}

func (w *GojaWorker) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		var msg string
		for i, arg := range call.Arguments {
			if i > 0 {
				msg += " "
			}
			msg += arg.String()
		}
		w.log.Debug("worker console", zap.String("level", level), zap.String("message", msg))
		return goja.Undefined()
	}
}

// proxy returns the stable JS object wrapping n.
func (w *GojaWorker) proxy(n *vnode) *goja.Object {
	if obj, ok := w.proxies[n]; ok {
		return obj
	}
	obj := w.vm.NewObject()
	w.proxies[n] = obj

	obj.Set("__id", n.id)
	obj.Set("tagName", n.tag)

	obj.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		if c := w.nodeFromValue(call.Argument(0)); c != nil {
			w.doc.appendChild(n, c)
		}
		return call.Argument(0)
	})
	obj.Set("removeChild", func(call goja.FunctionCall) goja.Value {
		if c := w.nodeFromValue(call.Argument(0)); c != nil {
			w.doc.removeChild(n, c)
		}
		return call.Argument(0)
	})
	obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		w.doc.setAttribute(n, call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	obj.Set("removeAttribute", func(call goja.FunctionCall) goja.Value {
		w.doc.removeAttribute(n, call.Argument(0).String())
		return goja.Undefined()
	})
	obj.Set("setText", func(call goja.FunctionCall) goja.Value {
		w.doc.setText(n, call.Argument(0).String())
		return goja.Undefined()
	})
	obj.Set("setProperty", func(call goja.FunctionCall) goja.Value {
		w.doc.setProperty(n, call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	obj.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		typ := call.Argument(0).String()
		cb, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			return goja.Undefined()
		}
		byType, ok := w.listeners[n.id]
		if !ok {
			byType = make(map[string]goja.Callable)
			w.listeners[n.id] = byType
		}
		byType[typ] = cb
		return goja.Undefined()
	})

	return obj
}

// nodeFromValue maps a JS proxy back to its vnode via the hidden id field.
func (w *GojaWorker) nodeFromValue(v goja.Value) *vnode {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	obj := v.ToObject(w.vm)
	if obj == nil {
		return nil
	}
	idv := obj.Get("__id")
	if idv == nil {
		return nil
	}
	return w.doc.nodes[idv.String()]
}
