package wire

import "encoding/binary"

// MaxPacketPayload is the default maximum number of bytes carried by a
// single packet within a message (spec §6). Peers must tolerate any value
// up to 2^32-1; this implementation always sends MaxPacketPayload-sized
// chunks (or smaller, for the final chunk).
const MaxPacketPayload = 256

func putU32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func getU32(b []byte) uint32    { return binary.BigEndian.Uint32(b) }

// chunk splits data into MaxPacketPayload-sized packets, always producing
// at least one packet (possibly empty) so packet_count is never reported
// as zero for a message carrying a zero-length payload that the recipient
// must still recognize as "message with data", per the original
// send()/recv() pairing in the protocol this implements.
func chunk(data []byte) [][]byte {
	if len(data) == 0 {
		return [][]byte{{}}
	}
	var packets [][]byte
	for off := 0; off < len(data); off += MaxPacketPayload {
		end := off + MaxPacketPayload
		if end > len(data) {
			end = len(data)
		}
		packets = append(packets, data[off:end])
	}
	return packets
}
