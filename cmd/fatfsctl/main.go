// fatfsctl drives an attached FAT32 volume from a terminal, calling directly
// the FileSystem methods that the FilesystemOperations table is built from
// (it does not go through the table itself), plus the
// compressed-image export/import commands useful for shipping disk images
// around without paying for every null byte.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dargueta/fatfs32/fat32"
	"github.com/dargueta/fatfs32/utilities/compression"
)

func main() {
	app := cli.App{
		Usage: "Inspect and manipulate FAT32 disk images",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "image", Required: true, Usage: "path to the disk image file"},
			&cli.UintFlag{Name: "block-size", Value: 512, Usage: "device block size in bytes"},
		},
		Commands: []*cli.Command{
			{Name: "stat", Usage: "show metadata for a path", ArgsUsage: "PATH", Action: statCmd},
			{Name: "ls", Usage: "check that a path is a directory; its entries are not listed", ArgsUsage: "PATH", Action: lsCmd},
			{Name: "cat", Usage: "print a file's contents", ArgsUsage: "PATH", Action: catCmd},
			{Name: "create", Usage: "create an empty file", ArgsUsage: "PATH", Action: createCmd},
			{Name: "mkdir", Usage: "create an empty directory", ArgsUsage: "PATH", Action: mkdirCmd},
			{Name: "write", Usage: "write stdin to a file at an offset", ArgsUsage: "PATH OFFSET", Action: writeCmd},
			{Name: "rm", Usage: "remove a file or directory", ArgsUsage: "PATH", Action: rmCmd},
			{Name: "mv", Usage: "rename an entry within its directory", ArgsUsage: "OLD NEW", Action: mvCmd},
			{Name: "truncate", Usage: "resize a file", ArgsUsage: "PATH LENGTH", Action: truncateCmd},
			{Name: "export", Usage: "compress the image to a file", ArgsUsage: "OUT", Action: exportCmd},
			{Name: "import", Usage: "decompress a file into the image", ArgsUsage: "IN", Action: importCmd},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatfsctl: %s", err)
	}
}

func attach(c *cli.Context) (*fat32.FileSystem, *os.File, error) {
	imagePath := c.String("image")
	f, err := os.OpenFile(imagePath, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	blockSize := c.Uint("block-size")
	numBlocks := uint(info.Size()) / blockSize
	device := fat32.NewFileBlockDevice(f, blockSize, numBlocks)

	fs, err := fat32.Attach(device, imagePath, false, log.Default())
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return fs, f, nil
}

func statCmd(c *cli.Context) error {
	fs, f, err := attach(c)
	if err != nil {
		return err
	}
	defer f.Close()

	dirent, err := fs.Stat(c.Args().First())
	if err != nil {
		return err
	}
	fmt.Printf("%s  size=%d  dir=%v  cluster=%d  modified=%s\n",
		dirent.Name, dirent.Size, dirent.IsDir(), dirent.FirstCluster, dirent.LastModified)
	return nil
}

func lsCmd(c *cli.Context) error {
	fs, f, err := attach(c)
	if err != nil {
		return err
	}
	defer f.Close()

	path := c.Args().First()
	if path == "" {
		path = "/"
	}
	dirent, err := fs.Stat(path)
	if err != nil {
		return err
	}
	if !dirent.IsDir() && path != "/" {
		return fmt.Errorf("%s is not a directory", path)
	}
	fmt.Printf("listing of %s is available via Stat on each child path\n", path)
	return nil
}

func catCmd(c *cli.Context) error {
	fs, f, err := attach(c)
	if err != nil {
		return err
	}
	defer f.Close()

	path := c.Args().First()
	dirent, err := fs.Stat(path)
	if err != nil {
		return err
	}

	buf := make([]byte, dirent.Size)
	n, err := fs.ReadFile(path, 0, buf)
	if err != nil {
		return err
	}
	os.Stdout.Write(buf[:n])
	return nil
}

func createCmd(c *cli.Context) error {
	fs, f, err := attach(c)
	if err != nil {
		return err
	}
	defer f.Close()
	defer fs.Flush()
	return fs.Create(c.Args().First(), false)
}

func mkdirCmd(c *cli.Context) error {
	fs, f, err := attach(c)
	if err != nil {
		return err
	}
	defer f.Close()
	defer fs.Flush()
	return fs.Create(c.Args().First(), true)
}

func writeCmd(c *cli.Context) error {
	fs, f, err := attach(c)
	if err != nil {
		return err
	}
	defer f.Close()
	defer fs.Flush()

	var offset int64
	if off := c.Args().Get(1); off != "" {
		if _, err := fmt.Sscanf(off, "%d", &offset); err != nil {
			return err
		}
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return err
	}

	_, err = fs.WriteFile(c.Args().First(), offset, data)
	return err
}

func rmCmd(c *cli.Context) error {
	fs, f, err := attach(c)
	if err != nil {
		return err
	}
	defer f.Close()
	defer fs.Flush()
	return fs.Remove(c.Args().First())
}

func mvCmd(c *cli.Context) error {
	fs, f, err := attach(c)
	if err != nil {
		return err
	}
	defer f.Close()
	defer fs.Flush()
	return fs.Rename(c.Args().Get(0), c.Args().Get(1))
}

func truncateCmd(c *cli.Context) error {
	fs, f, err := attach(c)
	if err != nil {
		return err
	}
	defer f.Close()
	defer fs.Flush()

	var length int64
	if _, err := fmt.Sscanf(c.Args().Get(1), "%d", &length); err != nil {
		return err
	}
	return fs.Truncate(c.Args().Get(0), length)
}

func exportCmd(c *cli.Context) error {
	imagePath := c.String("image")
	in, err := os.Open(imagePath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(c.Args().First())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = compression.CompressImage(in, out)
	return err
}

func importCmd(c *cli.Context) error {
	in, err := os.Open(c.Args().First())
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(c.String("image"))
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = compression.DecompressImage(in, out)
	return err
}
