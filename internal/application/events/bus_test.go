package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tofu-suite/tofu/internal/domain/entities"
)

func TestBus_PublishOrder(t *testing.T) {
	bus := NewBus(nil)

	var got []string
	bus.Subscribe(func(s entities.Section) { got = append(got, "a:"+s.String()) })
	bus.Subscribe(func(s entities.Section) { got = append(got, "b:"+s.String()) })

	bus.Publish(entities.SectionFolders, entities.SectionNotes)

	assert.Equal(t, []string{"a:folders", "b:folders", "a:notes", "b:notes"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)
	calls := 0
	unsubscribe := bus.Subscribe(func(entities.Section) { calls++ })
	require.Equal(t, 1, bus.Len())

	unsubscribe()
	unsubscribe()
	bus.Publish(entities.SectionTodos)

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, bus.Len())
}

func TestBus_PanickingSubscriber(t *testing.T) {
	bus := NewBus(nil)
	bus.Subscribe(func(entities.Section) { panic("boom") })
	var got []entities.Section
	bus.Subscribe(func(s entities.Section) { got = append(got, s) })

	assert.NotPanics(t, func() { bus.Publish(entities.SectionSettings) })
	assert.Equal(t, []entities.Section{entities.SectionSettings}, got)
}

func TestBus_UnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus(nil)
	var unsubscribe func()
	unsubscribe = bus.Subscribe(func(entities.Section) { unsubscribe() })

	assert.NotPanics(t, func() { bus.Publish(entities.SectionTodos) })
	assert.Equal(t, 0, bus.Len())
}

func TestBus_SubscribeChan(t *testing.T) {
	bus := NewBus(nil)
	ch, unsubscribe := bus.SubscribeChan(1)

	bus.Publish(entities.SectionEquipment, entities.SectionMaterials)

	assert.Equal(t, entities.SectionEquipment, <-ch)
	select {
	case s := <-ch:
		t.Fatalf("expected the second event to be dropped, got %s", s)
	default:
	}

	unsubscribe()
	_, open := <-ch
	assert.False(t, open)
	assert.NotPanics(t, func() { bus.Publish(entities.SectionTodos) })
	assert.NotPanics(t, unsubscribe)
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(nil)
	var (
		mu    sync.Mutex
		count int
	)
	bus.Subscribe(func(entities.Section) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(entities.SectionTodos)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, count)
}
