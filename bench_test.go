package perlnav

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// benchPerlSource is a realistic module with packages, constants, package
// variables, subroutines and calls for exercising the whole index path.
const benchPerlSource = `package App::Config;
use strict;
use warnings;

use constant DEFAULT_PORT => 8080;
use constant DEFAULT_HOST => 'localhost';

our $VERSION = '1.02';
our %Defaults = (port => DEFAULT_PORT, host => DEFAULT_HOST);

sub new {
    my ($class, %args) = @_;
    my $self = { %Defaults, %args };
    return bless $self, $class;
}

sub port { $_[0]->{port} }
sub host { $_[0]->{host} }

sub validate {
    my ($self) = @_;
    die "bad port" unless $self->port =~ /^\d+$/;
    return 1;
}

package App::Logger;

our @Levels = qw(debug info warn error);

sub new {
    my ($class, $level) = @_;
    return bless { level => $level // 'info' }, $class;
}

sub log {
    my ($self, $level, $msg) = @_;
    print STDERR "[$level] $msg\n";
}

package App;

sub run {
    my $config = App::Config->new(port => 9090);
    my $logger = App::Logger->new('debug');
    $config->validate;
    $logger->log(info => 'listening on ' . $config->host . ':' . $config->port);
    return App::Config::port($config);
}

1;
`

// benchCallLine and benchCallCol place the cursor on "port" in the
// qualified call App::Config::port near the end of benchPerlSource.
const (
	benchCallLine = 46
	benchCallCol  = 24
)

func setupBenchEngine(b *testing.B) (*Engine, string) {
	b.Helper()
	dir := b.TempDir()
	e, err := New(dir, testConfig(), WithIncludePaths([]string{}), WithRunner(&fakeRunner{}))
	if err != nil {
		b.Fatal(err)
	}
	srcPath := filepath.Join(dir, "App.pm")
	if err := os.WriteFile(srcPath, []byte(benchPerlSource), 0o644); err != nil {
		e.Close()
		b.Fatal(err)
	}
	return e, srcPath
}

// BenchmarkIndexFiles measures parsing and extraction of one module. The
// content changes every iteration so the hash check never skips it.
func BenchmarkIndexFiles(b *testing.B) {
	e, srcPath := setupBenchEngine(b)
	defer e.Close()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		content := fmt.Sprintf("%s# %d\n", benchPerlSource, i)
		if err := os.WriteFile(srcPath, []byte(content), 0o644); err != nil {
			b.Fatal(err)
		}
		b.StartTimer()

		if err := e.IndexFiles(ctx, []string{srcPath}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkResolveDefinition measures go-to-definition on a qualified call
// against a pre-indexed file. Parses after the first come from the cache.
func BenchmarkResolveDefinition(b *testing.B) {
	e, srcPath := setupBenchEngine(b)
	defer e.Close()
	ctx := context.Background()

	if err := e.IndexFiles(ctx, []string{srcPath}); err != nil {
		b.Fatal(err)
	}
	uri := uriOf(srcPath)
	pos := protocol.Position{Line: benchCallLine, Character: benchCallCol}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		locs, err := e.ResolveDefinition(ctx, uri, pos)
		if err != nil {
			b.Fatal(err)
		}
		if len(locs) == 0 {
			b.Fatal("expected a definition")
		}
	}
}

// BenchmarkFindSubroutine measures an exact-name index lookup.
func BenchmarkFindSubroutine(b *testing.B) {
	e, srcPath := setupBenchEngine(b)
	defer e.Close()

	if err := e.IndexFiles(context.Background(), []string{srcPath}); err != nil {
		b.Fatal(err)
	}
	q := e.Query()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := q.FindSubroutine("port"); err != nil {
			b.Fatal(err)
		}
	}
}
