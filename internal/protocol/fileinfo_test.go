package protocol

import "testing"

func TestAttrHas(t *testing.T) {
	a := AttrPermissions | AttrSize
	if !a.Has(AttrPermissions) {
		t.Error("expected AttrPermissions to be set")
	}
	if !a.Has(AttrPermissions | AttrSize) {
		t.Error("expected both AttrPermissions and AttrSize to be set")
	}
	if a.Has(AttrTimes) {
		t.Error("did not expect AttrTimes to be set")
	}
	if a.Has(AttrSize | AttrTimes) {
		t.Error("Has must require every requested bit, not just one")
	}
}

func TestFileInfoAccessorsOnNil(t *testing.T) {
	var fi *FileInfo
	if got := fi.ModeVal(); got != 0 {
		t.Errorf("ModeVal() on nil = %d, want 0", got)
	}
	if got := fi.SizeVal(); got != 0 {
		t.Errorf("SizeVal() on nil = %d, want 0", got)
	}
	if got := fi.MTimeVal(); got != 0 {
		t.Errorf("MTimeVal() on nil = %d, want 0", got)
	}
	if got := fi.ChecksumVal(); got != 0 {
		t.Errorf("ChecksumVal() on nil = %d, want 0", got)
	}
}

func TestFileInfoBuilders(t *testing.T) {
	fi := (&FileInfo{}).WithSize(1024).WithMode(0o640).WithChecksum(0xdeadbeef)
	if got := fi.SizeVal(); got != 1024 {
		t.Errorf("SizeVal() = %d, want 1024", got)
	}
	if got := fi.ModeVal(); got != 0o640 {
		t.Errorf("ModeVal() = %o, want %o", got, 0o640)
	}
	if got := fi.ChecksumVal(); got != 0xdeadbeef {
		t.Errorf("ChecksumVal() = %x, want deadbeef", got)
	}

	fi.WithTimes(1, 2, 3)
	if fi.ATime == nil || *fi.ATime != 1 {
		t.Errorf("ATime = %v, want 1", fi.ATime)
	}
	if fi.MTime == nil || *fi.MTime != 2 {
		t.Errorf("MTime = %v, want 2", fi.MTime)
	}
	if fi.CTime == nil || *fi.CTime != 3 {
		t.Errorf("CTime = %v, want 3", fi.CTime)
	}
}

func TestTagString(t *testing.T) {
	if got := AskFileList.String(); got == "" {
		t.Error("Tag.String() returned empty for a known tag")
	}
	if got := Tag(0).String(); got == "" {
		t.Error("Tag.String() should describe even an unknown tag, not return empty")
	}
}
