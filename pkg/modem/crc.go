package modem

// CRC8Checker computes CRC-8 with the given polynomial (0x07 when zero).
type CRC8Checker struct {
	Ploy uint8
	crc  uint8
}

func (c *CRC8Checker) Reset() {
	c.crc = 0
}

func (c *CRC8Checker) Update(b byte) {
	ploy := c.Ploy
	if ploy == 0 {
		ploy = 0x07
	}
	c.crc ^= b
	for k := 0; k < 8; k++ {
		if c.crc&0x80 != 0 {
			c.crc = (c.crc << 1) ^ ploy
		} else {
			c.crc <<= 1
		}
	}
}

func (c *CRC8Checker) Get() uint8 {
	return c.crc
}

func CRC8(data []byte) uint8 {
	var c CRC8Checker
	for _, b := range data {
		c.Update(b)
	}
	return c.Get()
}
