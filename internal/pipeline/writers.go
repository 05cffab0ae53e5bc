package pipeline

import (
	"fmt"
	"os"

	"github.com/trafficlab/sumoforge/internal/scenario"
)

// The three writers render small text files whose exact layout matters:
// Veins parses the launch descriptor, OMNeT++ the ini, SUMO the run config.
// Formats follow the files the classic Veins tutorials expect.

// WriteLaunchConfig writes the Veins launch descriptor listing the artifacts
// mounted into a co-simulation run.
func WriteLaunchConfig(art scenario.Artifacts) error {
	content := fmt.Sprintf(`<?xml version="1.0"?>
<launch>
    <copy file="%[1]s.net.xml" />
    <copy file="%[1]s.rou.xml" />
    <copy file="%[1]s.poly.xml" />
    <copy file="%[1]s.sumo.cfg" type="config" />
</launch>`, art.Base())
	if err := os.WriteFile(art.LaunchFile(), []byte(content), 0o644); err != nil {
		return fmt.Errorf("pipeline: write launch config: %w", err)
	}
	return nil
}

// WriteOmnetConfig writes omnetpp.ini with the simulated network name, time
// limit, launch-config reference, and the fixed Veins module types.
func WriteOmnetConfig(art scenario.Artifacts, durationSeconds int) error {
	content := fmt.Sprintf(`[General]
network = %[1]s
sim-time-limit = %[2]ds
*.manager.launchConfig = xmldoc("%[1]s.launchd.xml")
*.manager.moduleType = "org.car2x.veins.nodes.Car"
*.rsu[*].applType = "TraCIDemoRSU11p"
*.node[*].applType = "TraCIDemo11p"
*.node[*].veinsmobility.x = 0
*.node[*].veinsmobility.y = 0
*.node[*].veinsmobility.z = 1.895
`, art.Base(), durationSeconds)
	if err := os.WriteFile(art.OmnetConfigFile(), []byte(content), 0o644); err != nil {
		return fmt.Errorf("pipeline: write omnetpp.ini: %w", err)
	}
	return nil
}

// WriteSumoConfig writes the SUMO run configuration with the input file
// references and the [0, duration] time window.
func WriteSumoConfig(art scenario.Artifacts, durationSeconds int) error {
	content := fmt.Sprintf(`<configuration>
    <input>
        <net-file value="%[1]s.net.xml"/>
        <route-files value="%[1]s.rou.xml"/>
        <additional-files value="%[1]s.poly.xml"/>
    </input>
    <time>
        <begin value="0"/>
        <end value="%[2]d"/>
    </time>
</configuration>`, art.Base(), durationSeconds)
	if err := os.WriteFile(art.SumoConfigFile(), []byte(content), 0o644); err != nil {
		return fmt.Errorf("pipeline: write sumo config: %w", err)
	}
	return nil
}
