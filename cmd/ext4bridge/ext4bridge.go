package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/fuse"
	"github.com/hanwen/go-fuse/fuse/nodefs"
	"github.com/hanwen/go-fuse/fuse/pathfs"
	"github.com/horazont/ext4bridge/internal/blockdev"
	"github.com/horazont/ext4bridge/internal/config"
	"github.com/horazont/ext4bridge/internal/ext4fs"
	"github.com/horazont/ext4bridge/internal/frontend"
)

func writeMemProfile(fn string, sigs <-chan os.Signal) {
	i := 0
	for range sigs {
		fn := fmt.Sprintf("%s-%d.memprof", fn, i)
		i++

		log.Printf("Writing mem profile to %s\n", fn)
		f, err := os.Create(fn)
		if err != nil {
			log.Printf("Create: %v", err)
			continue
		}
		pprof.WriteHeapProfile(f)
		if err := f.Close(); err != nil {
			log.Printf("close %v", err)
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return config.Read(f)
}

func main() {
	cpuprofile := flag.String("profile", "", "record cpu profile.")
	memprofile := flag.String("mem-profile", "", "record memory profile.")
	configpath := flag.String("config", "", "read device table and mountpoint from a config file.")
	readonly := flag.Bool("read-only", false, "open the image read-only.")
	debug := flag.Bool("debug", false, "log the FUSE traffic.")
	flag.Parse()

	var cfg *config.Config
	if *configpath != "" {
		var err error
		cfg, err = loadConfig(*configpath)
		if err != nil {
			fmt.Printf("config: %v\n", err)
			os.Exit(2)
		}
	} else {
		if flag.NArg() < 2 {
			fmt.Printf("usage: %s IMAGE MOUNTPOINT\n", path.Base(os.Args[0]))
			fmt.Printf("\noptions:\n")
			flag.PrintDefaults()
			os.Exit(2)
		}
		cfg = &config.Config{
			Mountpoint: flag.Arg(1),
			Devices: []config.Device{
				{ID: 0, Image: flag.Arg(0), ReadOnly: *readonly},
			},
		}
	}

	if *cpuprofile != "" {
		fmt.Printf("Writing cpu profile to %s\n", *cpuprofile)
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Println(err)
			os.Exit(3)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}
	if *memprofile != "" {
		log.Printf("send SIGUSR1 to %d to dump memory profile", os.Getpid())
		profSig := make(chan os.Signal, 1)
		signal.Notify(profSig, syscall.SIGUSR1)
		go writeMemProfile(*memprofile, profSig)
	}
	if *cpuprofile != "" || *memprofile != "" {
		fmt.Fprintf(
			os.Stderr,
			"Note: You must unmount gracefully, otherwise the profile file(s) will stay empty!\n",
		)
	}

	if err := cfg.RegisterDevices(); err != nil {
		fmt.Printf("devices: %v\n", err)
		os.Exit(1)
	}

	// The first configured device carries the filesystem to mount.
	fs, err := ext4fs.Open(blockdev.DeviceID(cfg.Devices[0].ID))
	if err != nil {
		fmt.Printf("filesystem: %v\n", err)
		os.Exit(1)
	}
	front_fs := frontend.NewExt4BridgeFS(fs)

	opts := &nodefs.Options{
		// These options are to be compatible with libfuse defaults,
		// making benchmarking easier.
		NegativeTimeout: time.Second,
		AttrTimeout:     time.Second,
		EntryTimeout:    time.Second,
	}
	pathFsOpts := &pathfs.PathNodeFsOptions{ClientInodes: true}
	pathFs := pathfs.NewPathNodeFs(front_fs, pathFsOpts)

	conn := nodefs.NewFileSystemConnector(pathFs.Root(), opts)

	mOpts := &fuse.MountOptions{
		AllowOther: cfg.AllowOther,
		Name:       fs.Name(),
		FsName:     cfg.Devices[0].Image,
		Debug:      *debug,
	}
	state, err2 := fuse.NewServer(conn.RawFS(), cfg.Mountpoint, mOpts)
	if err2 != nil {
		fmt.Printf("Mount fail: %v\n", err2)
		os.Exit(1)
	}

	fmt.Println("Mounted!")
	state.Serve()
}
