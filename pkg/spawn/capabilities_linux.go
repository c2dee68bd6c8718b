package spawn

var platformCapabilities = Capabilities{
	NativeSpawn: true,
	ExecInPlace: false,
	SpawnChdir:  true,
}
