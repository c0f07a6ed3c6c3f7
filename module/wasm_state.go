package module

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/lv2-runtime/engine"
	"github.com/wippyai/lv2-runtime/lv2"
)

// stateBridge adapts host store and retrieve functions to the URI keyed
// callbacks a guest makes through the lv2 host module.
type stateBridge struct {
	mapper   lv2.Mapper
	store    lv2.StoreFunc
	retrieve lv2.RetrieveFunc
}

func (b *stateBridge) Store(key string, value []byte, typ string, flags uint32) lv2.StateStatus {
	if b.store == nil {
		return lv2.StateErrUnknown
	}
	return b.store(b.mapper.Map(key), value, b.mapper.Map(typ), lv2.StateFlags(flags))
}

func (b *stateBridge) Retrieve(key string) ([]byte, bool) {
	if b.retrieve == nil {
		return nil, false
	}
	value, _, _, ok := b.retrieve(b.mapper.Map(key))
	return value, ok
}

// stateInterface exposes the guest's save and restore exports. Guests name
// keys and types by URI, so the host's URID map feature is required.
func (l *wasmLibrary) stateInterface() *lv2.StateInterface {
	call := func(h lv2.Handle, export string, bridge *stateBridge, features lv2.Features) lv2.StateStatus {
		mapper, ok := lv2.FindFeature[lv2.Mapper](features, lv2.URIDMap)
		if !ok {
			return lv2.StateErrNoFeature
		}
		bridge.mapper = mapper
		wh := h.(*wasmHandle)
		cb, release := l.mod.Engine().BindStateHandler(bridge)
		defer release()

		res, err := wh.inst.Call(wh.ctx, export, api.EncodeU32(wh.handle), api.EncodeU32(cb))
		if err != nil {
			return lv2.StateErrUnknown
		}
		return lv2.StateStatus(api.DecodeI32(res[0]))
	}
	return &lv2.StateInterface{
		Save: func(h lv2.Handle, store lv2.StoreFunc, _ lv2.StateFlags, features lv2.Features) lv2.StateStatus {
			return call(h, engine.ExportStateSave, &stateBridge{store: store}, features)
		},
		Restore: func(h lv2.Handle, retrieve lv2.RetrieveFunc, _ lv2.StateFlags, features lv2.Features) lv2.StateStatus {
			return call(h, engine.ExportStateRestore, &stateBridge{retrieve: retrieve}, features)
		},
	}
}
