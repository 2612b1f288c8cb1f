package modbus

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
)

const (
	funcReadHoldingRegisters   = 0x03
	funcReadInputRegisters     = 0x04
	funcWriteSingleRegister    = 0x06
	funcWriteMultipleRegisters = 0x10

	excIllegalFunction     = 0x01
	excIllegalDataAddress  = 0x02
	excIllegalDataValue    = 0x03
	excServerDeviceFailure = 0x04

	mbapHeaderLen = 7 // transaction id, protocol id, length, unit id
)

// Server is a minimal Modbus TCP server exposing a RegisterFile (spec.md
// 4.13). Grounded on the teacher's KISS-over-TCP accept loop
// (src/kissnet.go's connect_listen_thread/kissnet_listen_thread: a
// net.Listen + per-client goroutine pair), rewritten without the
// teacher's CGo bridge types since Modbus framing has no C dependency.
type Server struct {
	addr     string
	registers *RegisterFile
	logger   *log.Logger

	mu       sync.Mutex
	listener net.Listener
}

func NewServer(addr string, registers *RegisterFile, logger *log.Logger) *Server {
	return &Server{addr: addr, registers: registers, logger: logger}
}

// Run listens and serves connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	if tcpListener, ok := listener.(*net.TCPListener); ok {
		if file, ferr := tcpListener.File(); ferr == nil {
			syscall.SetsockoptInt(int(file.Fd()), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
			file.Close()
		}
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("modbus server listening", "addr", s.addr)
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("modbus accept failed", "err", err)
			continue
		}
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	header := make([]byte, mbapHeaderLen)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("modbus connection read ended", "err", err)
			}
			return
		}

		transactionID := binary.BigEndian.Uint16(header[0:2])
		length := binary.BigEndian.Uint16(header[4:6])
		unitID := header[6]
		if length == 0 || length > 253 {
			return
		}

		pdu := make([]byte, length-1)
		if _, err := io.ReadFull(conn, pdu); err != nil {
			return
		}

		resp := s.handlePDU(pdu)
		s.writeResponse(conn, transactionID, unitID, resp)
	}
}

func (s *Server) handlePDU(pdu []byte) []byte {
	if len(pdu) == 0 {
		return exceptionResponse(0, excIllegalFunction)
	}
	fn := pdu[0]
	switch fn {
	case funcReadHoldingRegisters:
		return s.handleReadRegisters(fn, pdu, s.registers.ReadHolding)
	case funcReadInputRegisters:
		return s.handleReadRegisters(fn, pdu, s.registers.ReadInput)
	case funcWriteSingleRegister:
		return s.handleWriteSingle(fn, pdu)
	case funcWriteMultipleRegisters:
		return s.handleWriteMultiple(fn, pdu)
	default:
		return exceptionResponse(fn, excIllegalFunction)
	}
}

func (s *Server) handleReadRegisters(fn byte, pdu []byte, read func(addr, quantity int) ([]uint16, bool)) []byte {
	if len(pdu) != 5 {
		return exceptionResponse(fn, excIllegalDataValue)
	}
	addr := int(binary.BigEndian.Uint16(pdu[1:3]))
	quantity := int(binary.BigEndian.Uint16(pdu[3:5]))
	if quantity == 0 || quantity > 125 {
		return exceptionResponse(fn, excIllegalDataValue)
	}
	values, ok := read(addr, quantity)
	if !ok {
		return exceptionResponse(fn, excIllegalDataAddress)
	}
	resp := make([]byte, 2+len(values)*2)
	resp[0] = fn
	resp[1] = byte(len(values) * 2)
	for i, v := range values {
		binary.BigEndian.PutUint16(resp[2+i*2:], v)
	}
	return resp
}

func (s *Server) handleWriteSingle(fn byte, pdu []byte) []byte {
	if len(pdu) != 5 {
		return exceptionResponse(fn, excIllegalDataValue)
	}
	addr := int(binary.BigEndian.Uint16(pdu[1:3]))
	value := binary.BigEndian.Uint16(pdu[3:5])
	if !s.registers.WriteHolding(addr, value) {
		return exceptionResponse(fn, excIllegalDataAddress)
	}
	resp := make([]byte, len(pdu))
	copy(resp, pdu)
	return resp
}

func (s *Server) handleWriteMultiple(fn byte, pdu []byte) []byte {
	if len(pdu) < 6 {
		return exceptionResponse(fn, excIllegalDataValue)
	}
	addr := int(binary.BigEndian.Uint16(pdu[1:3]))
	quantity := int(binary.BigEndian.Uint16(pdu[3:5]))
	byteCount := int(pdu[5])
	if byteCount != quantity*2 || len(pdu) != 6+byteCount {
		return exceptionResponse(fn, excIllegalDataValue)
	}
	values := make([]uint16, quantity)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(pdu[6+i*2:])
	}
	if !s.registers.WriteHoldingMultiple(addr, values) {
		return exceptionResponse(fn, excIllegalDataAddress)
	}
	resp := make([]byte, 5)
	resp[0] = fn
	binary.BigEndian.PutUint16(resp[1:3], uint16(addr))
	binary.BigEndian.PutUint16(resp[3:5], uint16(quantity))
	return resp
}

func exceptionResponse(fn byte, code byte) []byte {
	return []byte{fn | 0x80, code}
}

func (s *Server) writeResponse(conn net.Conn, transactionID uint16, unitID byte, pdu []byte) {
	out := make([]byte, mbapHeaderLen+len(pdu))
	binary.BigEndian.PutUint16(out[0:2], transactionID)
	binary.BigEndian.PutUint16(out[2:4], 0) // protocol id, always 0 for Modbus
	binary.BigEndian.PutUint16(out[4:6], uint16(len(pdu)+1))
	out[6] = unitID
	copy(out[7:], pdu)
	conn.Write(out)
}
