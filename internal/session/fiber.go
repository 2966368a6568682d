package session

import (
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
)

// FiberBag adapts a Fiber session to the Bag interface. Mutations are held in
// the underlying session; the caller saves it once the request is done.
type FiberBag struct {
	sess *fibersession.Session
}

// NewFiberBag wraps a Fiber session.
func NewFiberBag(sess *fibersession.Session) *FiberBag {
	return &FiberBag{sess: sess}
}

func (b *FiberBag) Get(key string) string {
	value, _ := b.sess.Get(key).(string)
	return value
}

func (b *FiberBag) Set(key, value string) {
	b.sess.Set(key, value)
}

func (b *FiberBag) Delete(key string) {
	b.sess.Delete(key)
}

func (b *FiberBag) Reset() {
	for _, key := range b.sess.Keys() {
		b.sess.Delete(key)
	}
}
