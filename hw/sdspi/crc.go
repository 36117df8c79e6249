package sdspi

// crc16 computes the CRC16-CCITT (XMODEM, polynomial 0x1021, zero seed) used
// for SD data blocks.
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for range 8 {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
