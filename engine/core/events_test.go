package core

import "testing"

func TestEventBusFireStopsAtFirstHandler(t *testing.T) {
	bus := NewEventBus()
	var order []string
	first, second := "first", "second"

	bus.Register(EVENT_CODE_RESIZED, first, func(code SystemEventCode, sender, listener interface{}, ctx EventContext) bool {
		order = append(order, listener.(string))
		return ctx.Width == 0
	})
	bus.Register(EVENT_CODE_RESIZED, second, func(code SystemEventCode, sender, listener interface{}, ctx EventContext) bool {
		order = append(order, listener.(string))
		return true
	})

	if !bus.Fire(EVENT_CODE_RESIZED, nil, EventContext{Width: 0}) {
		t.Fatal("expected event to be handled")
	}
	if len(order) != 1 || order[0] != first {
		t.Fatalf("handled by %v, want [first]", order)
	}

	order = nil
	bus.Fire(EVENT_CODE_RESIZED, nil, EventContext{Width: 10, Height: 10})
	if len(order) != 2 {
		t.Fatalf("handled by %v, want both", order)
	}
}

func TestEventBusRegisterRejectsDuplicate(t *testing.T) {
	bus := NewEventBus()
	fn := func(SystemEventCode, interface{}, interface{}, EventContext) bool { return false }
	if !bus.Register(EVENT_CODE_KEY_PRESSED, bus, fn) {
		t.Fatal("first registration failed")
	}
	if bus.Register(EVENT_CODE_KEY_PRESSED, bus, fn) {
		t.Fatal("duplicate registration accepted")
	}
	if !bus.Unregister(EVENT_CODE_KEY_PRESSED, bus) {
		t.Fatal("unregister failed")
	}
	if bus.Unregister(EVENT_CODE_KEY_PRESSED, bus) {
		t.Fatal("unregister of missing listener succeeded")
	}
}

func TestEventBusShutdown(t *testing.T) {
	bus := NewEventBus()
	called := false
	bus.Register(EVENT_CODE_APPLICATION_QUIT, 1, func(SystemEventCode, interface{}, interface{}, EventContext) bool {
		called = true
		return true
	})
	bus.Shutdown()
	if bus.Fire(EVENT_CODE_APPLICATION_QUIT, nil, EventContext{}) || called {
		t.Fatal("listener survived shutdown")
	}
}
