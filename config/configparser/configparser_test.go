/*
 * axpbox-sub000 - Configuration directive file parser test set.
 *
 * Copyright 2024, Richard Cornwell
 * Copyright 2026, the axpbox-sub000 authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package configparser

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	testOptions []Option
	testDevNum  uint16
	testValue   string
	testType    string
)

func resetTest() {
	testOptions = []Option{}
	testDevNum = 0xffff
	testValue = "error"
	testType = ""
}

func cleanUpConfig() {
	models = map[string]modelDef{}
	resetTest()
}

func modDevice(devNum uint16, value string, options []Option) error {
	testDevNum, testValue, testType, testOptions = devNum, value, "model", options
	return nil
}

func modSwitch(devNum uint16, value string, options []Option) error {
	testDevNum, testValue, testType, testOptions = devNum, value, "switch", options
	return nil
}

func modOption(devNum uint16, value string, options []Option) error {
	testDevNum, testValue, testType, testOptions = devNum, value, "option", options
	return nil
}

func TestRegisterModel(t *testing.T) {
	cleanUpConfig()

	RegisterModel("disk0", TypeModel, modDevice)
	fTest := FirstOption{devNum: 0x1f0, isAddr: true, value: "test"}
	require.Error(t, createModel("bogus", &fTest, nil))

	require.NoError(t, createModel("disk0", &fTest, nil))
	require.Equal(t, uint16(0x1f0), testDevNum)
	require.Equal(t, "model", testType)
}

func TestRegisterSwitch(t *testing.T) {
	cleanUpConfig()

	RegisterSwitch("vmasist", modSwitch)
	require.Error(t, createSwitch("nosuch"))
	require.NoError(t, createSwitch("vmasist"))
	require.Equal(t, "switch", testType)
}

func TestRegisterOption(t *testing.T) {
	cleanUpConfig()

	RegisterOption("memory", modOption)
	first := FirstOption{devNum: 0xffff, isAddr: false, value: "128M"}
	require.NoError(t, createOption("memory", &first))
	require.Equal(t, "128M", testValue)
}

func TestLoadConfigFile(t *testing.T) {
	cleanUpConfig()
	RegisterOption("memory", modOption)
	RegisterModel("disk0", TypeModel, modDevice)
	RegisterSwitch("vmasist", modSwitch)

	f, err := os.CreateTemp(t.TempDir(), "cfg-*.ini")
	require.NoError(t, err)
	_, err = f.WriteString("# comment line\nDISK0 1F0 cdrom\nVMASIST\nMEMORY 128M\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, LoadConfigFile(f.Name()))
	require.Equal(t, "128M", testValue)
}

func TestLoadConfigFileMissingFile(t *testing.T) {
	cleanUpConfig()
	require.Error(t, LoadConfigFile("/nonexistent/path/to/config"))
}

func TestParseOptionsWithSuboptions(t *testing.T) {
	cleanUpConfig()
	RegisterModel("disk0", TypeOptions, modDevice)

	f, err := os.CreateTemp(t.TempDir(), "cfg-*.ini")
	require.NoError(t, err)
	_, err = f.WriteString("DISK0 1F0 cdrom,readonly file=\"/tmp/cd.iso\"\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, LoadConfigFile(f.Name()))
	require.Equal(t, uint16(0x1f0), testDevNum)
	require.Len(t, testOptions, 2)
	require.Equal(t, "cdrom", testOptions[0].Name)
	require.Equal(t, "readonly", *testOptions[0].Value[0])
}
