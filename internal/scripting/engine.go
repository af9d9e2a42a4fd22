package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	"cogentcore.org/core/math32"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/scene/internal/payload"
	"github.com/l1jgo/scene/internal/render"
)

const txTypeName = "scene.transaction"

// Engine wraps a single gopher-lua VM running scene producer scripts.
// Scripts define on_frame(frame) and build transactions through the global
// `scene` module. Single-goroutine access only (frame driver).
type Engine struct {
	vm     *lua.LState
	scene  *render.Scene
	log    *zap.Logger
	staged []*render.Transaction // enqueued by the running on_frame call

	// Spatial classification of every ID reset during the running frame.
	// Resets of one batch all apply before its updates and removals, so only
	// earlier resets and the committed scene decide what a reset may do.
	resetClass map[render.ItemID]bool
}

// NewEngine creates a Lua engine bound to scene and loads all scripts from
// scriptsDir and its producers/ subdirectory. Missing directories are skipped.
func NewEngine(scriptsDir string, scene *render.Scene, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, scene: scene, log: log, resetClass: make(map[render.ItemID]bool)}
	e.registerSceneModule()

	for _, dir := range []string{scriptsDir, filepath.Join(scriptsDir, "producers")} {
		if err := e.loadDir(dir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// LoadString runs a chunk of Lua source, e.g. an inline producer.
func (e *Engine) LoadString(src string) error {
	return e.vm.DoString(src)
}

// RunFrame calls the script's on_frame(frame). Transactions the script hands
// to scene.enqueue are forwarded to the scene only if the call succeeds.
// Returns the number of transactions enqueued.
func (e *Engine) RunFrame(frame uint64) (int, error) {
	fn := e.vm.GetGlobal("on_frame")
	if fn == lua.LNil {
		return 0, nil
	}

	e.staged = e.staged[:0]
	clear(e.resetClass)
	err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(frame))
	if err != nil {
		dropped := len(e.staged)
		e.staged = e.staged[:0]
		e.log.Error("lua on_frame error",
			zap.Uint64("frame", frame),
			zap.Int("dropped_transactions", dropped),
			zap.Error(err))
		return 0, fmt.Errorf("on_frame %d: %w", frame, err)
	}

	n := len(e.staged)
	for i, tx := range e.staged {
		e.scene.EnqueueTransaction(tx)
		e.staged[i] = nil
	}
	e.staged = e.staged[:0]
	return n, nil
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}

// --- scene module ---

func (e *Engine) registerSceneModule() {
	mt := e.vm.NewTypeMetatable(txTypeName)
	e.vm.SetField(mt, "__index", e.vm.SetFuncs(e.vm.NewTable(), map[string]lua.LGFunction{
		"reset":  e.txReset,
		"update": e.txUpdate,
		"remove": e.txRemove,
		"count":  txCount,
	}))

	mod := e.vm.SetFuncs(e.vm.NewTable(), map[string]lua.LGFunction{
		"allocate_id": e.luaAllocateID,
		"is_allocated": func(L *lua.LState) int {
			v := L.CheckNumber(1)
			L.Push(lua.LBool(v >= 0 && e.scene.IsAllocatedID(render.ItemID(uint64(v)))))
			return 1
		},
		"transaction": func(L *lua.LState) int {
			ud := L.NewUserData()
			ud.Value = &render.Transaction{}
			L.SetMetatable(ud, L.GetTypeMetatable(txTypeName))
			L.Push(ud)
			return 1
		},
		"enqueue": func(L *lua.LState) int {
			c := checkTx(L, 1).Clone()
			e.staged = append(e.staged, &c)
			return 0
		},
		"log": func(L *lua.LState) int {
			e.log.Info("lua", zap.String("msg", L.CheckString(1)))
			return 0
		},
	})
	e.vm.SetGlobal("scene", mod)
}

func (e *Engine) luaAllocateID(L *lua.LState) int {
	L.Push(lua.LNumber(e.scene.AllocateID()))
	return 1
}

func checkTx(L *lua.LState, n int) *render.Transaction {
	ud := L.CheckUserData(n)
	if tx, ok := ud.Value.(*render.Transaction); ok {
		return tx
	}
	L.ArgError(n, "transaction expected")
	return nil
}

// checkID accepts only IDs this scene has handed out. Anything else would
// fail when the frame driver commits the batch.
func (e *Engine) checkID(L *lua.LState, n int) render.ItemID {
	v := L.CheckNumber(n)
	if v < 1 || render.ItemID(uint64(v)) >= e.scene.NextID() {
		L.ArgError(n, fmt.Sprintf("item id %v was never allocated", v))
	}
	return render.ItemID(uint64(v))
}

// checkResetClass rejects a reset that would move a live item between the
// spatial index and the non-spatial set.
func (e *Engine) checkResetClass(L *lua.LState, id render.ItemID, key render.ItemKey) {
	spatial, ok := e.resetClass[id]
	if !ok {
		it, live := e.scene.Item(id)
		if !live {
			e.resetClass[id] = key.IsSpatial()
			return
		}
		spatial = it.Key.IsSpatial()
	}
	if spatial != key.IsSpatial() {
		L.ArgError(3, fmt.Sprintf("reset of item %d cannot change its spatial classification, remove it first", id))
	}
	e.resetClass[id] = spatial
}

// tx:reset(id, {tag=, flags={...}, min={x,y,z}, max={x,y,z}}). A nil spec
// resets with no payload, which removes the item.
func (e *Engine) txReset(L *lua.LState) int {
	tx := checkTx(L, 1)
	id := e.checkID(L, 2)
	spec := L.OptTable(3, nil)
	if spec == nil {
		tx.ResetItem(id, nil)
		return 0
	}
	key, err := keyFromTable(spec.RawGetString("flags"))
	if err != nil {
		L.ArgError(3, err.Error())
	}
	if key.IsNone() {
		L.ArgError(3, "reset needs at least one flag")
	}
	e.checkResetClass(L, id, key)
	tx.ResetItem(id, payload.NewShape(lStr(spec, "tag"), key, boxFromTable(spec)))
	return 0
}

// tx:update(id, {flags=..., min=..., max=..., move={dx,dy,dz}}). Only the
// given fields change.
func (e *Engine) txUpdate(L *lua.LState) int {
	tx := checkTx(L, 1)
	id := e.checkID(L, 2)
	spec := L.CheckTable(3)

	var fns []render.UpdateFunc
	if flags := spec.RawGetString("flags"); flags != lua.LNil {
		key, err := keyFromTable(flags)
		if err != nil {
			L.ArgError(3, err.Error())
		}
		if key.IsNone() {
			L.ArgError(3, "an item cannot be updated to an empty key, remove it instead")
		}
		fns = append(fns, payload.SetKey(key))
	}
	if spec.RawGetString("min") != lua.LNil || spec.RawGetString("max") != lua.LNil {
		fns = append(fns, payload.SetBound(boxFromTable(spec)))
	}
	if mv, ok := spec.RawGetString("move").(*lua.LTable); ok {
		fns = append(fns, payload.Move(vecFromTable(mv)))
	}
	tx.UpdateItem(id, payload.Chain(fns...))
	return 0
}

func (e *Engine) txRemove(L *lua.LState) int {
	checkTx(L, 1).RemoveItem(e.checkID(L, 2))
	return 0
}

// tx:count() returns resets, updates, removes.
func txCount(L *lua.LState) int {
	tx := checkTx(L, 1)
	L.Push(lua.LNumber(tx.NumResets()))
	L.Push(lua.LNumber(tx.NumUpdates()))
	L.Push(lua.LNumber(tx.NumRemoves()))
	return 3
}

// --- Lua helpers ---

// lStr reads a string field from a Lua table.
func lStr(t *lua.LTable, key string) string {
	return lua.LVAsString(t.RawGetString(key))
}

func keyFromTable(v lua.LValue) (render.ItemKey, error) {
	t, ok := v.(*lua.LTable)
	if !ok {
		return 0, fmt.Errorf("flags must be a list of names")
	}
	var key render.ItemKey
	var bad error
	t.ForEach(func(_, name lua.LValue) {
		flag, ok := render.ParseKeyFlag(lua.LVAsString(name))
		if !ok && bad == nil {
			bad = fmt.Errorf("unknown flag %q", lua.LVAsString(name))
		}
		key |= flag
	})
	return key, bad
}

func vecFromTable(t *lua.LTable) math32.Vector3 {
	return math32.Vec3(
		float32(lua.LVAsNumber(t.RawGetInt(1))),
		float32(lua.LVAsNumber(t.RawGetInt(2))),
		float32(lua.LVAsNumber(t.RawGetInt(3))),
	)
}

func boxFromTable(spec *lua.LTable) math32.Box3 {
	var b math32.Box3
	if t, ok := spec.RawGetString("min").(*lua.LTable); ok {
		b.Min = vecFromTable(t)
	}
	if t, ok := spec.RawGetString("max").(*lua.LTable); ok {
		b.Max = vecFromTable(t)
	}
	return b
}
