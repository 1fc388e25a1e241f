package office

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

const (
	progWord       = "Word.Application"
	progExcel      = "Excel.Application"
	progPowerPoint = "PowerPoint.Application"

	wdExportFormatPDF = 17
	xlTypePDF         = 0
	ppSaveAsPDF       = 32
	sFalse            = 1 // S_FALSE: COM already initialized on this thread
)

var errNotWindows = errors.New("COM automation requires Windows")

// withApp runs fn against a fresh instance of a COM automation server. The
// whole session lives on one locked OS thread and is torn down on every exit
// path: Quit, Release, CoUninitialize.
func withApp(progID string, fn func(app *ole.IDispatch) error) (err error) {
	if runtime.GOOS != "windows" {
		return errNotWindows
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		var oleErr *ole.OleError
		if !errors.As(err, &oleErr) || oleErr.Code() != sFalse {
			return fmt.Errorf("%s: CoInitializeEx: %w", progID, err)
		}
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject(progID)
	if err != nil {
		return fmt.Errorf("%s: create: %w", progID, err)
	}
	defer unknown.Release()

	app, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return fmt.Errorf("%s: dispatch: %w", progID, err)
	}
	defer app.Release()
	defer func() {
		if _, qerr := oleutil.CallMethod(app, "Quit"); qerr != nil && err == nil {
			err = fmt.Errorf("%s: quit: %w", progID, qerr)
		}
	}()

	return fn(app)
}

// probeCOM starts and quits the automation server once.
func probeCOM(progID string) error {
	return withApp(progID, func(*ole.IDispatch) error { return nil })
}

// collection returns a child collection such as Documents or Workbooks.
func collection(app *ole.IDispatch, name string) (*ole.IDispatch, error) {
	v, err := oleutil.GetProperty(app, name)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	return v.ToIDispatch(), nil
}

func nativeWord(string) Converter {
	return ConverterFunc(func(ctx context.Context, src, dst string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, dst, err := absPair(src, dst)
		if err != nil {
			return err
		}
		return withApp(progWord, func(app *ole.IDispatch) error {
			oleutil.PutProperty(app, "Visible", false)
			oleutil.PutProperty(app, "DisplayAlerts", 0)

			docs, err := collection(app, "Documents")
			if err != nil {
				return err
			}
			defer docs.Release()

			// Open(FileName, ConfirmConversions, ReadOnly)
			v, err := oleutil.CallMethod(docs, "Open", src, false, true)
			if err != nil {
				return fmt.Errorf("word: open: %w", err)
			}
			doc := v.ToIDispatch()
			defer doc.Release()
			defer oleutil.CallMethod(doc, "Close", false)

			if _, err := oleutil.CallMethod(doc, "ExportAsFixedFormat", dst, wdExportFormatPDF); err != nil {
				return fmt.Errorf("word: export: %w", err)
			}
			return nil
		})
	})
}

func nativeExcel(string) Converter {
	return ConverterFunc(func(ctx context.Context, src, dst string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, dst, err := absPair(src, dst)
		if err != nil {
			return err
		}
		return withApp(progExcel, func(app *ole.IDispatch) error {
			oleutil.PutProperty(app, "Visible", false)
			oleutil.PutProperty(app, "DisplayAlerts", false)

			books, err := collection(app, "Workbooks")
			if err != nil {
				return err
			}
			defer books.Release()

			// Open(FileName, UpdateLinks, ReadOnly)
			v, err := oleutil.CallMethod(books, "Open", src, 0, true)
			if err != nil {
				return fmt.Errorf("excel: open: %w", err)
			}
			book := v.ToIDispatch()
			defer book.Release()
			// Close(SaveChanges=false)
			defer oleutil.CallMethod(book, "Close", false)

			if _, err := oleutil.CallMethod(book, "ExportAsFixedFormat", xlTypePDF, dst); err != nil {
				return fmt.Errorf("excel: export: %w", err)
			}
			return nil
		})
	})
}

// nativePowerPoint saves into a private directory first: PowerPoint refuses
// some destination paths, and the result is relocated afterwards.
func nativePowerPoint(scratch string) Converter {
	return ConverterFunc(func(ctx context.Context, src, dst string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, dst, err := absPair(src, dst)
		if err != nil {
			return err
		}
		priv, err := os.MkdirTemp(scratch, "pptx-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(priv)
		tmp := filepath.Join(priv, "out.pdf")

		err = withApp(progPowerPoint, func(app *ole.IDispatch) error {
			pres, err := collection(app, "Presentations")
			if err != nil {
				return err
			}
			defer pres.Release()

			// Open(FileName, ReadOnly, Untitled, WithWindow)
			v, err := oleutil.CallMethod(pres, "Open", src, true, false, false)
			if err != nil {
				return fmt.Errorf("powerpoint: open: %w", err)
			}
			p := v.ToIDispatch()
			defer p.Release()
			defer oleutil.CallMethod(p, "Close")

			if _, err := oleutil.CallMethod(p, "SaveAs", tmp, ppSaveAsPDF); err != nil {
				return fmt.Errorf("powerpoint: save: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		return moveFile(tmp, dst)
	})
}

func absPair(src, dst string) (string, string, error) {
	a, err := filepath.Abs(src)
	if err != nil {
		return "", "", err
	}
	b, err := filepath.Abs(dst)
	if err != nil {
		return "", "", err
	}
	return a, b, nil
}
