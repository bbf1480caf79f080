package xsafe

import (
	"errors"
	"runtime"
	"testing"
)

func TestRegistry_CreatedHandlesAreTracked(t *testing.T) {
	d, _ := openFake(t)
	w := createWindow(t, d)
	gc, _ := d.CreateGC(0, nil)
	reg := d.Registry()

	if res, ok := reg.Lookup(w.XID()); !ok || res != Resource(w) {
		t.Fatalf("window lookup = %v, %v", res, ok)
	}
	if res, ok := reg.Lookup(gc.XID()); !ok || res != Resource(gc) {
		t.Fatalf("gc lookup = %v, %v", res, ok)
	}
	if reg.Len() != 2 {
		t.Fatalf("len = %d", reg.Len())
	}
	// Registering the tracked handle again is a no-op.
	if err := reg.Register(w); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	runtime.KeepAlive(gc)
}

func TestRegistry_DuplicateResource(t *testing.T) {
	d, _ := openFake(t)
	w := createWindow(t, d)

	d.core.mu.Lock()
	impostor := d.newDrawable(w.XID(), Unmapped, 0, true)
	d.core.mu.Unlock()

	expectErr(t, d.Registry().Register(impostor), ErrDuplicateResource)
	if res, _ := d.Registry().Lookup(w.XID()); res != Resource(w) {
		t.Fatalf("duplicate replaced the tracked handle")
	}
}

func TestRegistry_ForeignDiscoveryIsStable(t *testing.T) {
	d, fake := openFake(t)
	reg := d.Registry()

	first, err := reg.Drawable(0x500001)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !first.IsForeign() {
		t.Fatalf("expected Foreign, got %s", first.State())
	}
	second, _ := reg.Drawable(0x500001)
	if second != first {
		t.Fatalf("expected the same handle on second lookup")
	}
	if reg.Len() != 1 {
		t.Fatalf("len = %d", reg.Len())
	}
	if len(fake.ops()) != 0 {
		t.Fatalf("discovery should not query the server: %v", fake.ops())
	}
	runtime.KeepAlive(first)
}

func TestRegistry_GCIdentifierIsNotADrawable(t *testing.T) {
	d, _ := openFake(t)
	gc, _ := d.CreateGC(0, nil)
	if _, err := d.Registry().Drawable(gc.XID()); !errors.Is(err, ErrInvalidResource) {
		t.Fatalf("expected ErrInvalidResource, got %v", err)
	}
	if _, err := d.Registry().Drawable(0); !errors.Is(err, ErrInvalidResource) {
		t.Fatalf("expected None to be rejected, got %v", err)
	}
}

func TestRegistry_CrossConnectionAndTerminal(t *testing.T) {
	d1, _ := openFake(t)
	d2, _ := openFake(t)
	w := createWindow(t, d1)

	expectErr(t, d2.Registry().Register(w), ErrCrossConnection)

	if err := w.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	expectErr(t, d1.Registry().Register(w), ErrInvalidResource)
	expectErr(t, d1.Registry().Register(nil), ErrInvalidResource)
	var nilDrawable *Drawable
	expectErr(t, d1.Registry().Register(nilDrawable), ErrInvalidResource)
}

func TestRegistry_Unregister(t *testing.T) {
	d, _ := openFake(t)
	reg := d.Registry()
	foreign, _ := reg.Drawable(0x500009)

	if !reg.Unregister(foreign.XID()) {
		t.Fatalf("expected unregister to report removal")
	}
	if reg.Unregister(foreign.XID()) {
		t.Fatalf("second unregister should report nothing removed")
	}
	again, _ := reg.Drawable(0x500009)
	if again == foreign {
		t.Fatalf("expected a fresh handle after unregister")
	}
}

func TestRegistry_CloseInvalidatesAll(t *testing.T) {
	d, fake := openFake(t)
	w := createWindow(t, d)
	p, _ := d.CreatePixmap(0, 4, 4, 0)
	gc, _ := d.CreateGC(0, nil)
	reg := d.Registry()
	if reg.Len() != 3 {
		t.Fatalf("len = %d", reg.Len())
	}
	runtime.KeepAlive(w)
	runtime.KeepAlive(p)
	runtime.KeepAlive(gc)

	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("registry not cleared on close")
	}
	if n := fake.count("DestroyWindow") + fake.count("FreePixmap") + fake.count("FreeGC"); n != 0 {
		t.Fatalf("close issued %d per-resource releases", n)
	}
	if _, err := reg.Drawable(0x1); !errors.Is(err, ErrInvalidConnection) {
		t.Fatalf("expected ErrInvalidConnection, got %v", err)
	}
}

func TestRegistry_CollectedForeignHandlesLeave(t *testing.T) {
	d, fake := openFake(t)
	reg := d.Registry()

	func() {
		for i := uint32(0); i < 1000; i++ {
			if _, err := reg.Drawable(0x800000 + i); err != nil {
				t.Fatalf("resolve: %v", err)
			}
		}
	}()

	waitFor(t, func() bool { return reg.Len() == 0 })
	if len(fake.ops()) != 0 {
		t.Fatalf("forgetting foreign handles reached the server: %v", fake.ops())
	}
}

func TestRegistry_ForgetDrawableDropsOnlyItsEntry(t *testing.T) {
	d, fake := openFake(t)
	reg := d.Registry()
	stale, _ := reg.Drawable(0x800001)
	reg.Unregister(stale.XID())
	fresh, _ := reg.Drawable(0x800001)
	other, _ := reg.Drawable(0x800002)

	forgetDrawable(stale.core)
	if res, ok := reg.Lookup(0x800001); !ok || res != Resource(fresh) {
		t.Fatalf("stale forget evicted the new handle: %v, %v", res, ok)
	}
	forgetDrawable(other.core)
	if _, ok := reg.Lookup(0x800002); ok {
		t.Fatalf("forgotten foreign handle still registered")
	}
	if len(fake.ops()) != 0 {
		t.Fatalf("forget reached the server: %v", fake.ops())
	}
	runtime.KeepAlive(fresh)
}
