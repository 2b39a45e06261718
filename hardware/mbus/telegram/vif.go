package telegram

type vifKind uint8

const (
	vifNumeric vifKind = iota
	vifDate
	vifDateTime
	vifUnknown
)

type vifInfo struct {
	quantity string
	unit     string
	exp      int
	kind     vifKind
}

var unknownVIF = vifInfo{quantity: QuantityUnknown, kind: vifUnknown}

const unitNone = "none"

var durationUnits = [4]string{"s", "min", "h", "d"}

func duration(q string, nn byte) vifInfo {
	return vifInfo{quantity: q, unit: durationUnits[nn&3]}
}

// primaryVIF resolves VIF without extension bit, EN 13757-3 table 10.
func primaryVIF(v byte) vifInfo {
	n := int(v & 0x07)
	nn := int(v & 0x03)
	switch {
	case v <= 0x07:
		return vifInfo{quantity: "Energy", unit: "Wh", exp: n - 3}
	case v <= 0x0f:
		return vifInfo{quantity: "Energy", unit: "J", exp: n}
	case v <= 0x17:
		return vifInfo{quantity: "Volume", unit: "m3", exp: n - 6}
	case v <= 0x1f:
		return vifInfo{quantity: "Mass", unit: "kg", exp: n - 3}
	case v <= 0x23:
		return duration("On time", v)
	case v <= 0x27:
		return duration("Operating time", v)
	case v <= 0x2f:
		return vifInfo{quantity: "Power", unit: "W", exp: n - 3}
	case v <= 0x37:
		return vifInfo{quantity: "Power", unit: "J/h", exp: n}
	case v <= 0x3f:
		return vifInfo{quantity: "Volume flow", unit: "m3/h", exp: n - 6}
	case v <= 0x47:
		return vifInfo{quantity: "Volume flow", unit: "m3/min", exp: n - 7}
	case v <= 0x4f:
		return vifInfo{quantity: "Volume flow", unit: "m3/s", exp: n - 9}
	case v <= 0x57:
		return vifInfo{quantity: "Mass flow", unit: "kg/h", exp: n - 3}
	case v <= 0x5b:
		return vifInfo{quantity: "Flow temperature", unit: "C", exp: nn - 3}
	case v <= 0x5f:
		return vifInfo{quantity: "Return temperature", unit: "C", exp: nn - 3}
	case v <= 0x63:
		return vifInfo{quantity: "Temperature difference", unit: "K", exp: nn - 3}
	case v <= 0x67:
		return vifInfo{quantity: "External temperature", unit: "C", exp: nn - 3}
	case v <= 0x6b:
		return vifInfo{quantity: "Pressure", unit: "bar", exp: nn - 3}
	case v == 0x6c:
		return vifInfo{quantity: "Time point", kind: vifDate}
	case v == 0x6d:
		return vifInfo{quantity: "Time point", kind: vifDateTime}
	case v == 0x6e:
		return vifInfo{quantity: "Units for H.C.A.", unit: unitNone}
	case v == 0x6f:
		return unknownVIF
	case v <= 0x73:
		return duration("Averaging duration", v)
	case v <= 0x77:
		return duration("Actuality duration", v)
	case v == 0x78:
		return vifInfo{quantity: "Fabrication number", unit: unitNone}
	case v == 0x79:
		return vifInfo{quantity: "Enhanced identification", unit: unitNone}
	case v == 0x7a:
		return vifInfo{quantity: "Bus address", unit: unitNone}
	}
	return unknownVIF
}

// extFD resolves first VIFE after 0xFD, table 14.
func extFD(e byte) vifInfo {
	nn := int(e & 0x03)
	switch {
	case e <= 0x03:
		return vifInfo{quantity: "Credit", unit: "currency", exp: nn - 3}
	case e <= 0x07:
		return vifInfo{quantity: "Debit", unit: "currency", exp: nn - 3}
	case e == 0x08:
		return vifInfo{quantity: "Access number", unit: unitNone}
	case e == 0x09:
		return vifInfo{quantity: "Medium", unit: unitNone}
	case e == 0x0a:
		return vifInfo{quantity: "Manufacturer", unit: unitNone}
	case e == 0x0b:
		return vifInfo{quantity: "Parameter set identification", unit: unitNone}
	case e == 0x0c:
		return vifInfo{quantity: "Model version", unit: unitNone}
	case e == 0x0d:
		return vifInfo{quantity: "Hardware version", unit: unitNone}
	case e == 0x0e:
		return vifInfo{quantity: "Firmware version", unit: unitNone}
	case e == 0x0f:
		return vifInfo{quantity: "Software version", unit: unitNone}
	case e == 0x10:
		return vifInfo{quantity: "Customer location", unit: unitNone}
	case e == 0x11:
		return vifInfo{quantity: "Customer", unit: unitNone}
	case e == 0x16:
		return vifInfo{quantity: "Password", unit: unitNone}
	case e == 0x17:
		return vifInfo{quantity: "Error flags", unit: unitNone}
	case e == 0x18:
		return vifInfo{quantity: "Error mask", unit: unitNone}
	case e == 0x1a:
		return vifInfo{quantity: "Digital output", unit: unitNone}
	case e == 0x1b:
		return vifInfo{quantity: "Digital input", unit: unitNone}
	case e == 0x1c:
		return vifInfo{quantity: "Baud rate", unit: "Bd"}
	case e == 0x1d:
		return vifInfo{quantity: "Response delay time", unit: "bittimes"}
	case e == 0x1e:
		return vifInfo{quantity: "Retry", unit: unitNone}
	case e == 0x20:
		return vifInfo{quantity: "First storage number", unit: unitNone}
	case e == 0x21:
		return vifInfo{quantity: "Last storage number", unit: unitNone}
	case e == 0x22:
		return vifInfo{quantity: "Size of storage block", unit: unitNone}
	case e >= 0x24 && e <= 0x27:
		return duration("Storage interval", e)
	case e == 0x28:
		return vifInfo{quantity: "Storage interval", unit: "month"}
	case e == 0x29:
		return vifInfo{quantity: "Storage interval", unit: "year"}
	case e >= 0x2c && e <= 0x2f:
		return duration("Duration since last readout", e)
	case e == 0x30:
		return vifInfo{quantity: "Start of tariff", kind: vifDateTime}
	case e >= 0x31 && e <= 0x33:
		return duration("Duration of tariff", e)
	case e >= 0x34 && e <= 0x37:
		return duration("Period of tariff", e)
	case e == 0x38:
		return vifInfo{quantity: "Period of tariff", unit: "month"}
	case e == 0x39:
		return vifInfo{quantity: "Period of tariff", unit: "year"}
	case e == 0x3a:
		return vifInfo{quantity: "Dimensionless", unit: unitNone}
	case e >= 0x40 && e <= 0x4f:
		return vifInfo{quantity: "Voltage", unit: "V", exp: int(e&0x0f) - 9}
	case e >= 0x50 && e <= 0x5f:
		return vifInfo{quantity: "Current", unit: "A", exp: int(e&0x0f) - 12}
	case e == 0x60:
		return vifInfo{quantity: "Reset counter", unit: unitNone}
	case e == 0x61:
		return vifInfo{quantity: "Cumulation counter", unit: unitNone}
	case e == 0x62:
		return vifInfo{quantity: "Control signal", unit: unitNone}
	case e == 0x63:
		return vifInfo{quantity: "Day of week", unit: unitNone}
	case e == 0x64:
		return vifInfo{quantity: "Week number", unit: unitNone}
	case e == 0x65:
		return vifInfo{quantity: "Time point of day change", unit: unitNone}
	case e == 0x66:
		return vifInfo{quantity: "State of parameter activation", unit: unitNone}
	case e == 0x67:
		return vifInfo{quantity: "Special supplier information", unit: unitNone}
	case e >= 0x68 && e <= 0x6b:
		return duration("Duration since last cumulation", e)
	case e >= 0x6c && e <= 0x6f:
		return duration("Operating time battery", e)
	case e == 0x70:
		return vifInfo{quantity: "Battery change", kind: vifDateTime}
	}
	return unknownVIF
}

// extFB resolves first VIFE after 0xFB, table 12.
// Units are normalized to primary table units, e.g. MWh becomes Wh with exponent +6.
func extFB(e byte) vifInfo {
	n1 := int(e & 0x01)
	nn := int(e & 0x03)
	switch {
	case e <= 0x01:
		return vifInfo{quantity: "Energy", unit: "Wh", exp: n1 + 5}
	case e == 0x08 || e == 0x09:
		return vifInfo{quantity: "Energy", unit: "J", exp: n1 + 8}
	case e == 0x10 || e == 0x11:
		return vifInfo{quantity: "Volume", unit: "m3", exp: n1 + 2}
	case e == 0x18 || e == 0x19:
		return vifInfo{quantity: "Mass", unit: "kg", exp: n1 + 5}
	case e == 0x21:
		return vifInfo{quantity: "Volume", unit: "ft3", exp: -1}
	case e == 0x22:
		return vifInfo{quantity: "Volume", unit: "gal", exp: -1}
	case e == 0x23:
		return vifInfo{quantity: "Volume", unit: "gal"}
	case e == 0x24:
		return vifInfo{quantity: "Volume flow", unit: "gal/min", exp: -3}
	case e == 0x25:
		return vifInfo{quantity: "Volume flow", unit: "gal/min"}
	case e == 0x26:
		return vifInfo{quantity: "Volume flow", unit: "gal/h"}
	case e == 0x28 || e == 0x29:
		return vifInfo{quantity: "Power", unit: "W", exp: n1 + 5}
	case e == 0x30 || e == 0x31:
		return vifInfo{quantity: "Power", unit: "J/h", exp: n1 + 8}
	case e >= 0x58 && e <= 0x5b:
		return vifInfo{quantity: "Flow temperature", unit: "F", exp: nn - 3}
	case e >= 0x5c && e <= 0x5f:
		return vifInfo{quantity: "Return temperature", unit: "F", exp: nn - 3}
	case e >= 0x60 && e <= 0x63:
		return vifInfo{quantity: "Temperature difference", unit: "F", exp: nn - 3}
	case e >= 0x64 && e <= 0x67:
		return vifInfo{quantity: "External temperature", unit: "F", exp: nn - 3}
	case e >= 0x70 && e <= 0x73:
		return vifInfo{quantity: "Temperature limit", unit: "F", exp: nn - 3}
	case e >= 0x74 && e <= 0x77:
		return vifInfo{quantity: "Temperature limit", unit: "C", exp: nn - 3}
	case e >= 0x78:
		return vifInfo{quantity: "Cumulative max power", unit: "W", exp: int(e&0x07) - 3}
	}
	return unknownVIF
}

// applyVIFE adjusts info by combinable VIFE, table 15.
// Manufacturer specific VIFE makes meaning unknown.
func applyVIFE(info vifInfo, e byte) vifInfo {
	c := e & 0x7f
	switch {
	case c == 0x7f:
		return unknownVIF
	case info.kind != vifNumeric:
	case c >= 0x70 && c <= 0x77:
		info.exp += int(c&0x07) - 6
	case c == 0x7d:
		info.exp += 3
	}
	return info
}
