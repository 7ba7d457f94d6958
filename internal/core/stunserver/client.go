package stunserver

import (
	"net/netip"

	"github.com/pion/stun"
)

// STUNError STUN 处理错误
type STUNError struct {
	Message string
	Cause   error
}

func (e *STUNError) Error() string {
	if e.Cause != nil {
		return "stunserver: " + e.Message + ": " + e.Cause.Error()
	}
	return "stunserver: " + e.Message
}

func (e *STUNError) Unwrap() error {
	return e.Cause
}

// BindingRequest 构造一个 Binding Request，返回原始字节与事务 ID
func BindingRequest() ([]byte, [stun.TransactionIDSize]byte, error) {
	msg, err := stun.Build(stun.TransactionID, stun.BindingRequest, stun.Fingerprint)
	if err != nil {
		return nil, [stun.TransactionIDSize]byte{}, &STUNError{Message: "build request", Cause: err}
	}
	return msg.Raw, msg.TransactionID, nil
}

// ParseBindingResponse 从 Binding Success 中提取映射地址
//
// 优先使用 XOR-MAPPED-ADDRESS，缺失时回退到 MAPPED-ADDRESS。
func ParseBindingResponse(data []byte) (netip.AddrPort, error) {
	res, err := decodeResponse(data)
	if err != nil {
		return netip.AddrPort{}, err
	}
	return mappedAddress(res)
}

// ParseBindingResponseFor 与 ParseBindingResponse 相同，但要求事务 ID 匹配
func ParseBindingResponseFor(data []byte, id [stun.TransactionIDSize]byte) (netip.AddrPort, error) {
	res, err := decodeResponse(data)
	if err != nil {
		return netip.AddrPort{}, err
	}
	if res.TransactionID != id {
		return netip.AddrPort{}, &STUNError{Message: "transaction id mismatch"}
	}
	return mappedAddress(res)
}

func decodeResponse(data []byte) (*stun.Message, error) {
	if !stun.IsMessage(data) {
		return nil, &STUNError{Message: "not a stun message"}
	}

	res := new(stun.Message)
	res.Raw = append([]byte(nil), data...)
	if err := res.Decode(); err != nil {
		return nil, &STUNError{Message: "decode response", Cause: err}
	}
	if res.Type != stun.BindingSuccess {
		return nil, &STUNError{Message: "unexpected message type " + res.Type.String()}
	}
	return res, nil
}

func mappedAddress(res *stun.Message) (netip.AddrPort, error) {
	var xorAddr stun.XORMappedAddress
	if err := xorAddr.GetFrom(res); err == nil {
		return toAddrPort(xorAddr.IP, xorAddr.Port)
	}

	// 旧版 STUN
	var mapped stun.MappedAddress
	if err := mapped.GetFrom(res); err != nil {
		return netip.AddrPort{}, &STUNError{Message: "no mapped address in response", Cause: err}
	}
	return toAddrPort(mapped.IP, mapped.Port)
}

func toAddrPort(ip []byte, port int) (netip.AddrPort, error) {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.AddrPort{}, &STUNError{Message: "invalid mapped address"}
	}
	return netip.AddrPortFrom(addr.Unmap(), uint16(port)), nil
}
