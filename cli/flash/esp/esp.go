//
// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
package esp

import (
	"fmt"
	"time"

	"github.com/juju/errors"
)

type ChipFamily int

const (
	ChipUnknown ChipFamily = iota
	ChipESP8266
	ChipESP32
	ChipESP32S2
)

const (
	ChipIDReg = 0x60000078

	DefaultBaudRate = 115200
)

var (
	// Values of the chip ID register.
	chipIDs = map[uint32]ChipFamily{
		0x00062000: ChipESP8266,
		0x15122500: ChipESP32,
		0x00000500: ChipESP32S2,
	}

	efuseBase = map[ChipFamily]uint32{
		ChipUnknown: 0,
		ChipESP8266: 0x3ff00050,
		ChipESP32:   0x6001a000,
		ChipESP32S2: 0x6001a000,
	}

	supportedBaudRates = []uint{115200, 230400, 460800, 921600}
)

type FlashOpts struct {
	Port            string
	ROMBaudRate     uint
	FlasherBaudRate uint
	CommandTimeout  time.Duration
	// Reset the chip and start flashing only after the ROM announces it's
	// waiting for download.
	WaitForDownload bool
	WaitTimeout     time.Duration
	// Pulse the reset lines to boot into the new firmware when done.
	BootFirmware bool
}

func (cf ChipFamily) String() string {
	switch cf {
	case ChipUnknown:
		return "Unknown"
	case ChipESP8266:
		return "ESP8266"
	case ChipESP32:
		return "ESP32"
	case ChipESP32S2:
		return "ESP32S2"
	default:
		return fmt.Sprintf("???(%d)", int(cf))
	}
}

// ChipFamilyFromID maps the chip ID register value to a family.
// Unrecognized values map to ChipUnknown.
func ChipFamilyFromID(id uint32) ChipFamily {
	if cf, ok := chipIDs[id]; ok {
		return cf
	}
	return ChipUnknown
}

// EfuseBase returns the address of the first eFuse word for the family.
func (cf ChipFamily) EfuseBase() uint32 {
	return efuseBase[cf]
}

// MACFromEfuses derives the factory MAC address from eFuse words 1 and 2.
// Valid for ESP32 and ESP32-S2.
func MACFromEfuses(fuses [4]uint32) [6]byte {
	return [6]byte{
		byte(fuses[2] >> 8),
		byte(fuses[2]),
		byte(fuses[1] >> 24),
		byte(fuses[1] >> 16),
		byte(fuses[1] >> 8),
		byte(fuses[1]),
	}
}

func MACString(mac [6]byte) string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}

func CheckBaudRate(rate uint) error {
	for _, r := range supportedBaudRates {
		if r == rate {
			return nil
		}
	}
	return errors.Errorf("unsupported baud rate %d (supported: %v)", rate, supportedBaudRates)
}
