package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// outputs reads ABI-unpacked return values positionally, remembering the first mismatch
type outputs struct {
	method string
	values []interface{}
	err    error
}

func newOutputs(method string, values []interface{}, want int) *outputs {
	o := &outputs{method: method, values: values}
	if len(values) != want {
		o.err = fmt.Errorf("%s: expected %d return values, got %d", method, want, len(values))
	}
	return o
}

func (o *outputs) at(i int) interface{} {
	if o.err != nil || i >= len(o.values) {
		return nil
	}
	return o.values[i]
}

func (o *outputs) fail(i int, want string) {
	if o.err == nil {
		o.err = fmt.Errorf("%s: return value %d is %T, want %s", o.method, i, o.values[i], want)
	}
}

func (o *outputs) bigInt(i int) *big.Int {
	v := o.at(i)
	if v == nil {
		return nil
	}
	b, ok := v.(*big.Int)
	if !ok {
		o.fail(i, "*big.Int")
		return nil
	}
	return b
}

func (o *outputs) u8(i int) uint8 {
	v := o.at(i)
	if v == nil {
		return 0
	}
	u, ok := v.(uint8)
	if !ok {
		o.fail(i, "uint8")
	}
	return u
}

func (o *outputs) str(i int) string {
	v := o.at(i)
	if v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		o.fail(i, "string")
	}
	return s
}

func (o *outputs) address(i int) common.Address {
	v := o.at(i)
	if v == nil {
		return common.Address{}
	}
	a, ok := v.(common.Address)
	if !ok {
		o.fail(i, "common.Address")
	}
	return a
}

func (o *outputs) boolean(i int) bool {
	v := o.at(i)
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		o.fail(i, "bool")
	}
	return b
}
