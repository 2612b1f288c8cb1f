package modbus

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func TestRegisterFile_PublishAndReadInput(t *testing.T) {
	rf := NewRegisterFile()
	rf.PublishMeasurement(1234.5, 0.876, 412.3, 1_700_000_000_123, StatusOK)

	values, ok := rf.ReadInput(0, InputRegisterCount)
	require.True(t, ok)
	require.Equal(t, uint16(12345), values[RegResonanceFreq])
	require.Equal(t, uint16(876), values[RegAmplitude])
	require.Equal(t, uint16(4123), values[RegConcentration])
	require.Equal(t, StatusOK, values[RegStatus])

	wantTimestamp := uint64(1_700_000_000_123)
	require.Equal(t, uint16(wantTimestamp), values[RegTimestampLo])
	require.Equal(t, uint16(wantTimestamp>>16), values[RegTimestampHi])
}

func TestRegisterFile_WriteHoldingInvokesCallback(t *testing.T) {
	rf := NewRegisterFile()
	var gotReg int
	var gotVal uint16
	rf.OnHoldingWrite = func(register int, value uint16) {
		gotReg, gotVal = register, value
	}

	ok := rf.WriteHolding(RegGainPercent, 80)
	require.True(t, ok)
	require.Equal(t, RegGainPercent, gotReg)
	require.Equal(t, uint16(80), gotVal)

	values, ok := rf.ReadHolding(RegGainPercent, 1)
	require.True(t, ok)
	require.Equal(t, uint16(80), values[0])
}

func TestRegisterFile_OutOfRangeReadFails(t *testing.T) {
	rf := NewRegisterFile()
	_, ok := rf.ReadInput(4, 10)
	require.False(t, ok)
}

func buildRequest(transactionID uint16, unitID byte, pdu []byte) []byte {
	out := make([]byte, mbapHeaderLen+len(pdu))
	binary.BigEndian.PutUint16(out[0:2], transactionID)
	binary.BigEndian.PutUint16(out[4:6], uint16(len(pdu)+1))
	out[6] = unitID
	copy(out[7:], pdu)
	return out
}

func TestServer_ReadInputRegistersOverTCP(t *testing.T) {
	rf := NewRegisterFile()
	rf.PublishMeasurement(1000, 0.5, 300, 1000, StatusOK)

	srv := NewServer("127.0.0.1:0", rf, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv.listener = listener

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go srv.serveConn(ctx, conn)
		}
	}()

	conn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	req := buildRequest(1, 1, []byte{funcReadInputRegisters, 0x00, 0x00, 0x00, byte(InputRegisterCount)})
	_, err = conn.Write(req)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	header := make([]byte, mbapHeaderLen)
	_, err = io.ReadFull(conn, header)
	require.NoError(t, err)
	length := binary.BigEndian.Uint16(header[4:6])
	pdu := make([]byte, length-1)
	_, err = io.ReadFull(conn, pdu)
	require.NoError(t, err)

	require.Equal(t, byte(funcReadInputRegisters), pdu[0])
	require.Equal(t, byte(InputRegisterCount*2), pdu[1])
	resonance := binary.BigEndian.Uint16(pdu[2:4])
	require.Equal(t, uint16(10000), resonance)
}

func TestHandleWriteSingle_RejectsOutOfRangeAddress(t *testing.T) {
	rf := NewRegisterFile()
	srv := NewServer("127.0.0.1:0", rf, testLogger())
	resp := srv.handlePDU([]byte{funcWriteSingleRegister, 0x00, 0x63, 0x00, 0x01})
	require.Equal(t, byte(funcWriteSingleRegister|0x80), resp[0])
	require.Equal(t, byte(excIllegalDataAddress), resp[1])
}
