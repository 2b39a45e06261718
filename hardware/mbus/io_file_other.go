//go:build !linux

package mbus

import (
	"github.com/juju/errors"
)

type fileUart struct{}

func NewFileUart() *fileUart { return &fileUart{} }

func (self *fileUart) Open(path string, baud int) error {
	return errors.NotSupportedf("uart_driver=file on this platform, use uart_driver=serial")
}
func (self *fileUart) Close() error                { return nil }
func (self *fileUart) ResetRead() error            { return nil }
func (self *fileUart) Read(p []byte) (int, error)  { return 0, errPollTimeout }
func (self *fileUart) Write(p []byte) (int, error) { return 0, errors.NotSupportedf("uart write") }
