// Package quantity binds quantity inputs and keeps their values in range.
package quantity

import (
	"strconv"
	"strings"
	"sync"

	"github.com/jashezan/HomifyHub/internal/browser/dom"
)

// Bounds applied when an input carries no usable min or max attribute.
const (
	DefaultMin = 1
	DefaultMax = 99
	// CartMax is the default ceiling for cart line inputs.
	CartMax = 999
)

// Clamp limits v to [lo, hi]. When hi < lo the result is lo.
func Clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Control is a bounded quantity bound to an <input>.
type Control struct {
	el       *dom.Element
	min, max int

	mu    sync.Mutex
	value int
}

// Bind reads the bounds and current value of input. Inputs with the
// cart-quantity class default to CartMax.
func Bind(input *dom.Element) *Control {
	hi := DefaultMax
	if input.HasClass("cart-quantity") {
		hi = CartMax
	}
	lo := intAttr(input, "min", DefaultMin)
	hi = intAttr(input, "max", hi)
	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}

	value := Clamp(intAttr(input, "value", lo), lo, hi)
	return &Control{el: input, min: lo, max: hi, value: value}
}

// BindAll binds every product and cart quantity input on the page, keyed by id.
func BindAll(doc *dom.Document) map[string]*Control {
	controls := make(map[string]*Control)
	for _, class := range []string{"quantity-input", "cart-quantity"} {
		for _, el := range doc.ByClass(class) {
			id := el.ID()
			if id == "" {
				continue
			}
			controls[id] = Bind(el)
		}
	}
	return controls
}

func intAttr(el *dom.Element, key string, def int) int {
	v, ok := el.Attr(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// Min returns the lower bound.
func (c *Control) Min() int { return c.min }

// Max returns the upper bound.
func (c *Control) Max() int { return c.max }

// Value returns the current value.
func (c *Control) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set stores v clamped to the bounds and returns the stored value.
func (c *Control) Set(v int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setLocked(v)
}

// Increment adds one, stopping at Max.
func (c *Control) Increment() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setLocked(c.value + 1)
}

// Decrement subtracts one, stopping at Min.
func (c *Control) Decrement() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setLocked(c.value - 1)
}

func (c *Control) setLocked(v int) int {
	v = Clamp(v, c.min, c.max)
	if v != c.value {
		c.value = v
		c.el.SetAttr("value", strconv.Itoa(v))
	}
	return v
}
