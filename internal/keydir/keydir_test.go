package keydir

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeydirPutGet(t *testing.T) {
	kd := New()

	_, ok := kd.Get("missing")
	assert.False(t, ok)

	entry := Entry{FileID: 1, Len: 10, Pos: 20, Tstamp: 100}
	kd.Put("key", entry)

	got, ok := kd.Get("key")
	assert.True(t, ok)
	assert.Equal(t, entry, got)
}

func TestKeydirPutOverwrites(t *testing.T) {
	kd := New()
	kd.Put("key", Entry{FileID: 0, Pos: 0})
	kd.Put("key", Entry{FileID: 1, Pos: 99})

	got, ok := kd.Get("key")
	assert.True(t, ok)
	assert.Equal(t, uint64(1), got.FileID)
	assert.Equal(t, uint64(99), got.Pos)
	assert.Equal(t, 1, kd.Len())
}

func TestKeydirDelete(t *testing.T) {
	kd := New()
	kd.Put("key", Entry{FileID: 0})

	assert.True(t, kd.Delete("key"))
	_, ok := kd.Get("key")
	assert.False(t, ok)

	assert.False(t, kd.Delete("key"), "deleting an absent key returns false")
}

func TestKeydirLen(t *testing.T) {
	kd := New()
	assert.Equal(t, 0, kd.Len())

	for i := 0; i < 5; i++ {
		kd.Put(string(rune('a'+i)), Entry{FileID: uint64(i)})
	}
	assert.Equal(t, 5, kd.Len())
}

func TestKeydirConcurrentAccess(t *testing.T) {
	kd := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%26))
			kd.Put(key, Entry{FileID: uint64(i)})
			kd.Get(key)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, kd.Len(), 26)
}
