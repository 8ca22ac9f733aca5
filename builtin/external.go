// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package builtin

import (
	"time"

	"github.com/dop251/goja"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/xenv"
)

const (
	// exitThrown is the exit code of a script that throws.
	exitThrown int8 = 1
	// maxCallDepth bounds the call stack of a script.
	maxCallDepth = 1024
)

var (
	errWatchdog = errors.New("external backend: watchdog timeout")
	errStop     = errors.New("stop")
)

// external is a backend written in javascript. The script defines handle(args) and talks to
// the rollup through the global gw object. Byte strings cross the boundary as 0x-prefixed hex.
type external struct {
	name     string
	program  *goja.Program
	watchdog time.Duration
}

func newExternal(name string, source []byte, watchdog time.Duration) (*external, error) {
	metered, err := instrument(name, string(source))
	if err != nil {
		return nil, errors.Wrapf(err, "backend %s", name)
	}
	program, err := goja.Compile(name, metered, true)
	if err != nil {
		return nil, errors.Wrapf(err, "backend %s", name)
	}
	return &external{name, program, watchdog}, nil
}

func (e *external) Name() string { return e.name }
func (*external) backend()       {}

// Fee is zero, external args are opaque.
func (*external) Fee([]byte) Fee { return Fee{} }

func (e *external) Handle(env *xenv.Environment, args []byte) error {
	env.SetMaxReturnData(gw.MaxExternalReturnDataSize)

	vm := goja.New()
	vm.SetMaxCallStackSize(maxCallDepth)
	rt := &jsRuntime{vm: vm, env: env}
	if err := rt.setup(); err != nil {
		return err
	}

	// last resort for the host, scripts are bounded by cycles
	timer := time.AfterFunc(e.watchdog, func() { vm.Interrupt(errWatchdog) })
	defer timer.Stop()

	if _, err := vm.RunProgram(e.program); err != nil {
		return rt.result(err)
	}
	handle, ok := goja.AssertFunction(vm.Get("handle"))
	if !ok {
		return xenv.Exit(xenv.ExitFatalInvalidContext, "%s: handle is not defined", e.name)
	}
	_, err := handle(goja.Undefined(), vm.ToValue(hexutil.Encode(args)))
	return rt.result(err)
}

type jsRuntime struct {
	vm   *goja.Runtime
	env  *xenv.Environment
	halt error
}

// setup binds the syscalls and the step meter, and removes the sources of nondeterminism.
func (rt *jsRuntime) setup() error {
	global := rt.vm.GlobalObject()
	if err := global.Delete("Date"); err != nil {
		return err
	}
	if err := rt.vm.Get("Math").ToObject(rt.vm).Delete("random"); err != nil {
		return err
	}
	if err := global.Set("gw", rt.syscalls()); err != nil {
		return err
	}
	step := rt.fn(func(goja.FunctionCall) (any, error) {
		return nil, rt.env.Charge(xenv.CyclesScriptStep)
	})
	return global.DefineDataProperty(stepFunc, rt.vm.ToValue(step), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
}

// result maps the outcome of a script run to a backend result.
func (rt *jsRuntime) result(err error) error {
	if rt.halt != nil {
		if rt.halt == errStop {
			return nil
		}
		return rt.halt
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return errWatchdog
	}
	if err != nil {
		return xenv.Exit(exitThrown, "%v", err)
	}
	return nil
}

func (rt *jsRuntime) fn(f func(call goja.FunctionCall) (any, error)) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		v, err := f(call)
		if err != nil {
			// a halt can't be caught by the script
			rt.halt = err
			rt.vm.Interrupt(err)
			panic(rt.vm.NewGoError(err))
		}
		if v == nil {
			return goja.Undefined()
		}
		return rt.vm.ToValue(v)
	}
}

func bytesArg(call goja.FunctionCall, i int) ([]byte, error) {
	b, err := hexutil.Decode(call.Argument(i).String())
	if err != nil {
		return nil, xenv.Exit(xenv.ExitFatalInvalidData, "argument %d: %v", i, err)
	}
	return b, nil
}

func bytes32Arg(call goja.FunctionCall, i int) (gw.Bytes32, error) {
	b, err := bytesArg(call, i)
	if err != nil {
		return gw.Bytes32{}, err
	}
	if len(b) != 32 {
		return gw.Bytes32{}, xenv.Exit(xenv.ExitFatalInvalidData, "argument %d: want 32 bytes", i)
	}
	return gw.BytesToBytes32(b), nil
}

func (rt *jsRuntime) syscalls() *goja.Object {
	env := rt.env
	obj := rt.vm.NewObject()
	defines := []struct {
		name string
		run  func(call goja.FunctionCall) (any, error)
	}{
		{"accountID", func(goja.FunctionCall) (any, error) {
			return env.AccountID(), nil
		}},
		{"sender", func(goja.FunctionCall) (any, error) {
			return env.Sender(), nil
		}},
		{"blockNumber", func(goja.FunctionCall) (any, error) {
			return env.BlockInfo().Number, nil
		}},
		{"load", func(call goja.FunctionCall) (any, error) {
			key, err := bytesArg(call, 0)
			if err != nil {
				return nil, err
			}
			v, err := env.LoadValue(env.AccountID(), key)
			if err != nil {
				return nil, err
			}
			return v.String(), nil
		}},
		{"store", func(call goja.FunctionCall) (any, error) {
			key, err := bytesArg(call, 0)
			if err != nil {
				return nil, err
			}
			value, err := bytes32Arg(call, 1)
			if err != nil {
				return nil, err
			}
			return nil, env.StoreValue(env.AccountID(), key, value)
		}},
		{"storeData", func(call goja.FunctionCall) (any, error) {
			data, err := bytesArg(call, 0)
			if err != nil {
				return nil, err
			}
			hash, err := env.StoreData(data)
			if err != nil {
				return nil, err
			}
			return hash.String(), nil
		}},
		{"loadData", func(call goja.FunctionCall) (any, error) {
			hash, err := bytes32Arg(call, 0)
			if err != nil {
				return nil, err
			}
			data, err := env.LoadData(hash)
			if err != nil {
				return nil, err
			}
			return hexutil.Encode(data), nil
		}},
		{"setReturnData", func(call goja.FunctionCall) (any, error) {
			data, err := bytesArg(call, 0)
			if err != nil {
				return nil, err
			}
			return nil, env.SetReturnData(data)
		}},
		{"log", func(call goja.FunctionCall) (any, error) {
			data, err := bytesArg(call, 1)
			if err != nil {
				return nil, err
			}
			return nil, env.Log(env.AccountID(), byte(call.Argument(0).ToInteger()), data)
		}},
		{"finalize", func(goja.FunctionCall) (any, error) {
			return nil, env.Finalize()
		}},
		{"exit", func(call goja.FunctionCall) (any, error) {
			code := int8(call.Argument(0).ToInteger())
			if code == xenv.ExitSuccess {
				return nil, errStop
			}
			return nil, xenv.Exit(code, "exit")
		}},
	}
	for _, def := range defines {
		if err := obj.Set(def.name, rt.fn(def.run)); err != nil {
			panic(err)
		}
	}
	return obj
}
